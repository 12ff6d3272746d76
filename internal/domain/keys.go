package domain

type CtxKey string

const (
	KeyUserID      CtxKey = "UserID"
	KeyUserEmail   CtxKey = "Email"
	KeyUserType    CtxKey = "UserType"
	KeyAccessToken CtxKey = "AccessToken"
	KeyUser        CtxKey = "User"
	KeyIdentity    CtxKey = "Identity"
	KeyRequestID   CtxKey = "RequestID"
)
