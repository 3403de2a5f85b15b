package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/fleet-ledger/internal"
	"github.com/frahmantamala/fleet-ledger/internal/auth"
	"github.com/frahmantamala/fleet-ledger/internal/transport"
	"github.com/frahmantamala/fleet-ledger/pkg/logger"
)

func TestAuth(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Auth Suite")
}

var _ = Describe("JWTVerifier", func() {
	var verifier *auth.JWTVerifier

	BeforeEach(func() {
		verifier = auth.NewJWTVerifier("test-secret", "fleet-admin")
	})

	It("should accept a token it signed", func() {
		token, err := verifier.Sign("admin-7", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		claims, err := verifier.Verify(token)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.Subject).To(Equal("admin-7"))
	})

	It("should reject a token signed with another secret", func() {
		token, err := auth.NewJWTVerifier("other-secret", "fleet-admin").Sign("admin-7", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(token)
		Expect(err).To(MatchError(auth.ErrInvalidToken))
	})

	It("should reject a token from another issuer", func() {
		token, err := auth.NewJWTVerifier("test-secret", "someone-else").Sign("admin-7", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(token)
		Expect(err).To(MatchError(auth.ErrInvalidToken))
	})

	It("should report expiry separately", func() {
		token, err := verifier.Sign("admin-7", -time.Minute)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(token)
		Expect(err).To(MatchError(auth.ErrTokenExpired))
	})

	It("should require a subject", func() {
		token, err := verifier.Sign("", time.Hour)
		Expect(err).NotTo(HaveOccurred())

		_, err = verifier.Verify(token)
		Expect(err).To(MatchError(auth.ErrMissingActor))
	})

	It("should be disabled without a secret", func() {
		Expect(auth.NewJWTVerifier("", "").Enabled()).To(BeFalse())
		Expect(verifier.Enabled()).To(BeTrue())
	})
})

var _ = Describe("Middleware", func() {
	var (
		base    *transport.BaseHandler
		seen    string
		handler http.Handler
	)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = internal.ActorIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	BeforeEach(func() {
		base = &transport.BaseHandler{Logger: logger.Discard()}
		seen = ""
	})

	Context("with a shared secret", func() {
		var verifier *auth.JWTVerifier

		BeforeEach(func() {
			verifier = auth.NewJWTVerifier("test-secret", "")
			handler = auth.NewMiddleware(base, verifier, "").RequireActor(echo)
		})

		It("should put the token subject on the context", func() {
			token, err := verifier.Sign("admin-1", time.Hour)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusNoContent))
			Expect(seen).To(Equal("admin-1"))
		})

		It("should ignore the actor header", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			req.Header.Set(auth.DefaultActorHeader, "admin-1")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(rr.Body.String()).To(ContainSubstring(string(internal.ErrCodeMissingActorIdentity)))
		})

		It("should reject a tampered token", func() {
			token, err := verifier.Sign("admin-1", time.Hour)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			req.Header.Set("Authorization", "Bearer "+token+"x")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(rr.Body.String()).To(ContainSubstring(string(internal.ErrCodeInvalidToken)))
			Expect(seen).To(BeEmpty())
		})

		It("should reject an expired token", func() {
			token, err := verifier.Sign("admin-1", -time.Minute)
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
			Expect(rr.Body.String()).To(ContainSubstring(string(internal.ErrCodeTokenExpired)))
		})
	})

	Context("without a secret", func() {
		BeforeEach(func() {
			handler = auth.NewMiddleware(base, auth.NewJWTVerifier("", ""), "X-Admin").RequireActor(echo)
		})

		It("should trust the configured header", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			req.Header.Set("X-Admin", "  clerk-9 ")
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusNoContent))
			Expect(seen).To(Equal("clerk-9"))
		})

		It("should reject a request with no actor", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drivers", nil)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			Expect(rr.Code).To(Equal(http.StatusUnauthorized))
		})
	})
})
