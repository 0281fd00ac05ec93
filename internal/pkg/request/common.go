package request

// ByIDRequest is a common struct for endpoints that require an ID path parameter.
type ByIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ListParams holds pagination parameters shared by list endpoints.
type ListParams struct {
	Page     int `form:"page,default=1" binding:"min=1"`
	PageSize int `form:"page_size,default=20" binding:"min=1,max=100"`
}

// ByFingerprintRequest binds the customer fingerprint path parameter.
type ByFingerprintRequest struct {
	Fingerprint string `uri:"fingerprint" binding:"required,max=128"`
}
