package model

// TokenManager issues and verifies service tokens used by the messaging
// front-end to authenticate against the engine API.
type TokenManager interface {
	GenerateServiceToken(service string) (string, error)
	ParseServiceToken(tokenString string) (string, error)
}
