package echoapi

import (
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsStudent    bool     `json:"is_student,omitempty"`
	IsTeacher    bool     `json:"is_teacher,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	IsParent     bool     `json:"is_parent,omitempty"`
	Roles        []string `json:"roles,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        &Claims{},
	}
}

// getUserClaims returns the JWT claims for usr.
// origIat is only provided on refresh; it marks the original token issue time
// past which refreshing is no longer allowed.
func getUserClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	iat := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = iat
	}

	sort.Strings(usr.Roles)
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   usr.ID,
			Audience:  conf.AppName,
			IssuedAt:  iat,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		IsStudent:    usr.IsStudent(),
		IsTeacher:    usr.IsTeacher(),
		IsAdmin:      usr.IsAdmin(),
		IsParent:     usr.IsParent(),
		Roles:        usr.Roles,
	}
}

func generateToken(conf *core.Config, claims *Claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(conf.SecretKey))
	return token, errors.Wrap(err, "signing token")
}

// authenticate checks the provided credentials and returns the matching user.
func authenticate(ctx echo.Context, svc user.Service, uname, pwd string) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx.Request().Context(), uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if usr.IsActive != nil && !*usr.IsActive {
		return user.User{}, errAccountDeactivated
	}

	if usr, err = svc.SetLastLogin(ctx.Request().Context(), usr); err != nil {
		return user.User{}, errors.Wrap(err, "setting last login")
	}
	return usr, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser fetches the authenticated user lazily and caches it on the
// request context.
func getContextUser(ctx echo.Context, svc user.Service, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else if claims, err = getContextClaims(ctx); err != nil {
		return user.User{}, err
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}

	sort.Strings(roles)
	for _, role := range claims.Roles {
		if i := sort.SearchStrings(roles, role); i < len(roles) && roles[i] == role {
			return true
		}
	}
	return false
}

// refreshToken issues a new token for the authenticated user as long as the
// original token's issue time is within the refresh window.
func refreshToken(conf *core.Config, ctx echo.Context, svc user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", err
	}
	if usr.IsActive != nil && !*usr.IsActive {
		return "", errAccountDeactivated
	}

	origIat := claims.OrigIssuedAt
	if time.Unix(origIat, 0).Add(conf.Server.JWTRefreshExpirationDelta).Before(time.Now()) {
		return "", errRefreshExpired
	}
	return generateToken(conf, getUserClaims(conf, usr, origIat))
}
