package service

import (
	"context"
	"fmt"
	"strings"

	"hospital-console-go/internal/config"
	"hospital-console-go/internal/model"
	"hospital-console-go/pkg/hash"
	"hospital-console-go/pkg/log"
	"hospital-console-go/pkg/token"
)

// AuthService 为 staff/admin 操作员签发令牌。
type AuthService interface {
	Login(username, password string) (string, model.Role, error)
}

type authService struct {
	operators  map[string]config.OperatorConfig
	jwtManager *token.JWTManager
}

// NewAuthService 从配置加载操作员。非 staff/admin 角色的条目会被忽略。
func NewAuthService(cfg config.AuthConfig, jwtManager *token.JWTManager) AuthService {
	operators := make(map[string]config.OperatorConfig, len(cfg.Operators))
	for _, op := range cfg.Operators {
		role := model.Role(op.Role)
		if !role.Privileged() {
			log.Warnf("忽略操作员 '%s'：角色 %q 不需要登录", op.Username, op.Role)
			continue
		}
		operators[op.Username] = op
	}
	return &authService{operators: operators, jwtManager: jwtManager}
}

// Login 校验用户名和密码，成功后返回 access token。
func (s *authService) Login(username, password string) (string, model.Role, error) {
	op, ok := s.operators[username]
	if !ok || !hash.CheckPasswordHash(password, op.PasswordHash) {
		log.Warnf("操作员登录失败: '%s'", username)
		return "", "", fmt.Errorf("%w: invalid username or password", ErrUnauthorized)
	}
	accessToken, err := s.jwtManager.GenerateToken(op.Username, op.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	log.Infof("操作员 '%s' 登录成功, role=%s", op.Username, op.Role)
	return accessToken, model.Role(op.Role), nil
}

type tokenAuthenticator struct {
	jwtManager *token.JWTManager
}

// NewTokenAuthenticator 返回基于 JWT 的 Authenticator。
func NewTokenAuthenticator(jwtManager *token.JWTManager) Authenticator {
	return &tokenAuthenticator{jwtManager: jwtManager}
}

// Authenticate 要求令牌角色与请求角色一致；admin 令牌也可以开启 staff 会话。
func (a *tokenAuthenticator) Authenticate(_ context.Context, tokenString string, role model.Role) (string, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("%w: %s role requires an operator token", ErrUnauthorized, role)
	}
	claims, err := a.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	granted := model.Role(claims.Role)
	if granted != role && !(granted == model.RoleAdmin && role == model.RoleStaff) {
		return "", fmt.Errorf("%w: token for %s cannot open a %s session", ErrUnauthorized, granted, role)
	}
	return claims.Username, nil
}
