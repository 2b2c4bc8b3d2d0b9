package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-token-gate/internal/domain"
	"github.com/feral-file/ff-token-gate/internal/logger"
)

// Decider evaluates access for a (path, address) pair. Implemented by
// the gate engine.
type Decider interface {
	Decide(ctx context.Context, path, address string) (domain.Decision, error)
}

// GateOptions configures caller identity extraction for the gate
type GateOptions struct {
	// AddressHeader is the request header carrying the caller address
	AddressHeader string
	// JWTPublicKey, when set, enables falling back to the subject of a
	// valid Bearer JWT as the caller address
	JWTPublicKey string
}

// CallerAddress extracts the caller address from the request: the
// configured header first, then the subject of a valid Bearer JWT.
// Returns the empty string for an unauthenticated caller.
func CallerAddress(c *gin.Context, opts GateOptions) string {
	if addr := c.GetHeader(opts.AddressHeader); addr != "" {
		return NormalizeAddress(addr)
	}

	if opts.JWTPublicKey != "" {
		authHeader := c.GetHeader("Authorization")
		if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
			claims, err := validateJWT(token, opts.JWTPublicKey)
			if err == nil && claims.Subject != "" {
				return NormalizeAddress(claims.Subject)
			}
		}
	}

	return ""
}

// NormalizeAddress lowercases EVM hex addresses so they match the
// ledger's stored form; other address formats pass through verbatim
func NormalizeAddress(addr string) string {
	if common.IsHexAddress(addr) {
		return strings.ToLower(common.HexToAddress(addr).Hex())
	}
	return addr
}

// Gate returns a gin middleware enforcing engine decisions for every
// request it wraps. ALLOW continues the chain, DENY answers 403, and an
// evaluation error answers 500 - a store failure must never be
// mistaken for a denial.
func Gate(engine Decider, opts GateOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := CallerAddress(c, opts)

		decision, err := engine.Decide(c.Request.Context(), c.Request.URL.Path, address)
		if err != nil {
			logger.ErrorCtx(c.Request.Context(), err,
				zap.String("path", c.Request.URL.Path),
				zap.String("address", address),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "evaluation_error",
					"message": "Access evaluation failed",
				},
			})
			return
		}

		if !decision.Allowed() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "forbidden",
					"message": "Access denied",
				},
			})
			return
		}

		c.Next()
	}
}
