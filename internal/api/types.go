package api

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued by the backend.
type LoginResponse struct {
	Token string `json:"token"`
}

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	SourceBucket      string `json:"sourceBucket"`
	DestinationBucket string `json:"destinationBucket"`
	FileKey           string `json:"fileKey"`
}

// AWSCredential is the body of POST /admin/aws.
type AWSCredential struct {
	AccountName string `json:"accountName"`
	AccessKey   string `json:"accessKey"`
	SecretKey   string `json:"secretKey"`
	Region      string `json:"region"`
}

// StoredCredential is one entry of GET /admin/aws. Secret material is never
// returned.
type StoredCredential struct {
	ID          string `json:"id"`
	AccountName string `json:"accountName"`
	Region      string `json:"region"`
}
