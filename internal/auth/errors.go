package auth

import (
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

// Business errors
var (
	ErrLoginFailed  apperrors.Error = apperrors.ErrBusiness.New("login failed")
	ErrUpdateFailed apperrors.Error = apperrors.ErrBusiness.New("profile update failed")
)

// ErrPermission is returned when an authenticated user lacks the required role.
var ErrPermission = apperrors.ErrPermission
