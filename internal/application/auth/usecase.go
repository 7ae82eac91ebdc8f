package auth

import (
	"crypto/subtle"

	"github.com/jhoicas/ledger-migration-api/internal/application/dto"
	"github.com/jhoicas/ledger-migration-api/internal/domain"
	"github.com/jhoicas/ledger-migration-api/internal/domain/entity"
	"github.com/jhoicas/ledger-migration-api/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
)

// JWTConfig configuración para generación de tokens.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// AuthUseCase login de operadores configurados (sin registro: las credenciales vienen de config).
type AuthUseCase struct {
	operators []entity.Operator
	jwtCfg    JWTConfig
}

// NewAuthUseCase construye el caso de uso. Se ignoran operadores sin usuario o sin hash.
func NewAuthUseCase(operators []entity.Operator, jwtCfg JWTConfig) *AuthUseCase {
	valid := make([]entity.Operator, 0, len(operators))
	for _, op := range operators {
		if op.Username != "" && op.PasswordHash != "" {
			valid = append(valid, op)
		}
	}
	return &AuthUseCase{operators: valid, jwtCfg: jwtCfg}
}

// Login verifica usuario/password con bcrypt y emite un JWT con el rol del operador.
func (uc *AuthUseCase) Login(in dto.LoginRequest) (*dto.LoginResponse, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}
	op := uc.find(in.Username)
	if op == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(in.Password)); err != nil {
		return nil, domain.ErrUnauthorized
	}
	token, err := jwt.Generate(uc.jwtCfg.Secret, op.Username, op.Role, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token:     token,
		Role:      op.Role,
		ExpiresIn: uc.jwtCfg.ExpMinutes * 60,
	}, nil
}

func (uc *AuthUseCase) find(username string) *entity.Operator {
	for i := range uc.operators {
		if subtle.ConstantTimeCompare([]byte(uc.operators[i].Username), []byte(username)) == 1 {
			return &uc.operators[i]
		}
	}
	return nil
}
