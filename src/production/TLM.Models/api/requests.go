package api_models

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token string `json:"token"`
}

// UpsertUserRequest is the body of POST /admin/users.
type UpsertUserRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// UpsertUserResponse echoes the stored user without the hash.
type UpsertUserResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// CreateDeviceRequest is the body of POST /admin/devices.
type CreateDeviceRequest struct {
	DeviceID string   `json:"device_id" binding:"required"`
	Name     *string  `json:"name"`
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
}

// AssignDeviceRequest is the body of POST /admin/devices/assign.
type AssignDeviceRequest struct {
	Email    string `json:"email" binding:"required"`
	DeviceID string `json:"device_id" binding:"required"`
}

// SetDeviceSecretRequest is the body of POST /admin/devices/secret. When
// Secret is empty a random one is generated.
type SetDeviceSecretRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Secret   string `json:"secret"`
}

// SetDeviceSecretResponse returns the plaintext secret exactly once; only
// the keyed hash is persisted.
type SetDeviceSecretResponse struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
}
