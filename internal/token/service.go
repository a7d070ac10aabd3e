package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultPrefix = "req"
	defaultIssuer = "grantflow"
	minSecretLen  = 32
)

// Зарегистрированные claims, которые Service выставляет сам.
var reservedClaims = map[string]bool{
	"iss": true,
	"sub": true,
	"aud": true,
	"exp": true,
	"nbf": true,
	"iat": true,
	"jti": true,
}

// Config — конфигурация Service.
type Config struct {
	// Secret — симметричный ключ HS256 (минимум 32 байта).
	Secret []byte

	// Prefix — видимый prefix token (default: "req").
	Prefix string

	// Issuer — значение iss, проверяется при Decode (default: "grantflow").
	Issuer string

	// Now — источник времени (для тестов). Default: time.Now.
	Now func() time.Time
}

// Claims — проверенные claims token.
type Claims struct {
	// Values — claims, переданные в Create.
	Values map[string]any

	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// String возвращает строковый claim или пустую строку.
func (c *Claims) String(key string) string {
	if v, ok := c.Values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Require проверяет, что строковые claims присутствуют и не пусты.
// Отсутствие — KindDecoding: подпись верна, но token не пригоден.
func (c *Claims) Require(keys ...string) error {
	for _, key := range keys {
		if c.String(key) == "" {
			return newError(KindDecoding, fmt.Sprintf("required claim %q missing", key), nil)
		}
	}
	return nil
}

// Service выпускает и проверяет request token.
// Ключ читается один раз при создании, после этого Service потокобезопасен.
type Service struct {
	key    []byte
	prefix string
	issuer string
	now    func() time.Time
}

// NewService создаёт Service.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, ErrWeakSecret
	}

	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	if strings.Contains(prefix, "_") {
		return nil, fmt.Errorf("token prefix %q must not contain '_'", prefix)
	}

	issuer := cfg.Issuer
	if issuer == "" {
		issuer = defaultIssuer
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	key := make([]byte, len(cfg.Secret))
	copy(key, cfg.Secret)

	return &Service{
		key:    key,
		prefix: prefix,
		issuer: issuer,
		now:    now,
	}, nil
}

// Prefix возвращает prefix выпускаемых token.
func (s *Service) Prefix() string {
	return s.prefix
}

// Create выпускает token с claims и сроком жизни ttl.
//
// Отрицательный ttl даёт уже истёкший token.
func (s *Service) Create(claims map[string]any, ttl time.Duration) (string, error) {
	now := s.now()

	mc := make(jwt.MapClaims, len(claims)+4)
	for k, v := range claims {
		if reservedClaims[k] {
			return "", newError(KindCreation, fmt.Sprintf("claim %q is reserved", k), nil)
		}
		mc[k] = v
	}
	mc["iss"] = s.issuer
	mc["iat"] = jwt.NewNumericDate(now)
	mc["exp"] = jwt.NewNumericDate(now.Add(ttl))
	mc["jti"] = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.key)
	if err != nil {
		return "", newError(KindCreation, "sign claims", err)
	}

	return s.prefix + "_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + signed, nil
}

// Decode проверяет token и возвращает его claims.
// Числовые claims возвращаются как int64 (целые) или float64.
func (s *Service) Decode(token string) (*Claims, error) {
	envelope, err := s.envelope(token)
	if err != nil {
		return nil, err
	}

	parsed := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(envelope, parsed,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithJSONNumber(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, mapJWTError(err)
	}

	return buildClaims(parsed)
}

// IsValid проверяет token тем же путём, что и Decode.
// Только для лёгких предпроверок, не для решений по безопасности.
func (s *Service) IsValid(token string) bool {
	_, err := s.Decode(token)
	return err == nil
}

// envelope отрезает prefix и метку времени и возвращает подписанный payload.
func (s *Service) envelope(token string) (string, error) {
	token = strings.TrimSpace(token)

	first := strings.IndexByte(token, '_')
	if first <= 0 {
		return "", newError(KindInvalid, "missing token prefix", nil)
	}
	if token[:first] != s.prefix {
		return "", newError(KindInvalid, "unexpected token prefix", nil)
	}

	rest := token[first+1:]
	second := strings.IndexByte(rest, '_')
	if second <= 0 {
		return "", newError(KindInvalid, "missing token timestamp", nil)
	}
	if _, err := strconv.ParseInt(rest[:second], 10, 64); err != nil {
		return "", newError(KindInvalid, "malformed token timestamp", err)
	}

	payload := rest[second+1:]
	if payload == "" {
		return "", newError(KindInvalid, "empty token payload", nil)
	}
	return payload, nil
}

// mapJWTError переводит ошибки jwt в виды ошибок token.
// Порядок важен: истёкший token с верной подписью — KindExpired.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return newError(KindExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return newError(KindDecoding, "required claim missing", err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return newError(KindInvalid, "token verification failed", err)
	default:
		return newError(KindDecoding, "token could not be decoded", err)
	}
}

func buildClaims(parsed jwt.MapClaims) (*Claims, error) {
	exp, err := parsed.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, newError(KindDecoding, "exp claim unreadable", err)
	}

	claims := &Claims{
		Values:    make(map[string]any, len(parsed)),
		ExpiresAt: exp.Time,
	}

	if iat, err := parsed.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if jti, ok := parsed["jti"].(string); ok {
		claims.ID = jti
	}

	for k, v := range parsed {
		if reservedClaims[k] {
			continue
		}
		claims.Values[k] = normalizeNumbers(v)
	}

	return claims, nil
}

// normalizeNumbers заменяет json.Number на int64 (целые) или float64.
// Целые больше 2^53 сохраняются без потери точности.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeNumbers(inner)
		}
		return t
	case []any:
		for i, inner := range t {
			t[i] = normalizeNumbers(inner)
		}
		return t
	default:
		return v
	}
}
