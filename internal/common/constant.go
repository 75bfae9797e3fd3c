package common

// Route names shared by the flow controller and its transports.
const (
	RouteLogin        = "login"
	RouteUserEdit     = "user_edit"
	RouteUserUpdate   = "user_update"
	RouteUserRegister = "user_register"
	RouteLogout       = "logout"
	RouteUserDelete   = "user_delete"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)
