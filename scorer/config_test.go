package scorer_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"

	"github.com/JohnPlummer/draft-ranker/scorer"
)

var _ = Describe("Config", func() {
	Describe("NewDefaultConfig", func() {
		It("should make a single attempt per judgment by default", func() {
			cfg := scorer.NewDefaultConfig("test-api-key")

			Expect(cfg.APIKey).To(Equal("test-api-key"))
			Expect(cfg.Model).To(Equal(openai.GPT4oMini))
			Expect(cfg.Timeout).To(BeZero())
			Expect(cfg.EnableCircuitBreaker).To(BeFalse())
			Expect(cfg.EnableRetry).To(BeFalse())
			Expect(cfg.CircuitBreakerConfig).To(BeNil())
			Expect(cfg.RetryConfig).To(BeNil())
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("modifiers", func() {
		It("should not mutate the receiver", func() {
			base := scorer.NewDefaultConfig("key")
			_ = base.WithRetry().WithCircuitBreaker().WithModel("gpt-4o")

			Expect(base.EnableRetry).To(BeFalse())
			Expect(base.Model).To(Equal(scorer.DefaultModel))
		})

		It("should enable the circuit breaker with defaults", func() {
			cfg := scorer.NewDefaultConfig("key").WithCircuitBreaker()

			Expect(cfg.EnableCircuitBreaker).To(BeTrue())
			Expect(cfg.CircuitBreakerConfig.MaxRequests).To(Equal(uint32(1)))
			Expect(cfg.CircuitBreakerConfig.Interval).To(Equal(60 * time.Second))
			Expect(cfg.CircuitBreakerConfig.Timeout).To(Equal(30 * time.Second))
		})

		It("should enable retry with defaults", func() {
			cfg := scorer.NewDefaultConfig("key").WithRetry()

			Expect(cfg.EnableRetry).To(BeTrue())
			Expect(cfg.RetryConfig.MaxAttempts).To(Equal(3))
			Expect(cfg.RetryConfig.Strategy).To(Equal(scorer.RetryStrategyExponential))
			Expect(cfg.RetryConfig.InitialDelay).To(Equal(time.Second))
			Expect(cfg.RetryConfig.MaxDelay).To(Equal(30 * time.Second))
		})

		It("should set model, base URL, timeout and prompt", func() {
			cfg := scorer.NewDefaultConfig("key").
				WithModel("gpt-4o").
				WithBaseURL("http://localhost:8080/v1").
				WithTimeout(5 * time.Second).
				WithPromptTemplate("Judge {{.Draft}}")

			Expect(cfg.Model).To(Equal("gpt-4o"))
			Expect(cfg.BaseURL).To(Equal("http://localhost:8080/v1"))
			Expect(cfg.Timeout).To(Equal(5 * time.Second))
			Expect(cfg.PromptText).To(Equal("Judge {{.Draft}}"))
			Expect(cfg.Validate()).To(Succeed())
		})
	})

	Describe("DefaultCircuitBreakerConfig", func() {
		DescribeTable("ReadyToTrip",
			func(counts gobreaker.Counts, expected bool) {
				Expect(scorer.DefaultCircuitBreakerConfig().ReadyToTrip(counts)).To(Equal(expected))
			},
			Entry("no requests", gobreaker.Counts{}, false),
			Entry("five consecutive failures", gobreaker.Counts{Requests: 5, TotalFailures: 5, ConsecutiveFailures: 5}, true),
			Entry("high failure rate", gobreaker.Counts{Requests: 10, TotalFailures: 7, ConsecutiveFailures: 1}, true),
			Entry("high rate on few requests", gobreaker.Counts{Requests: 4, TotalFailures: 3, ConsecutiveFailures: 1}, false),
			Entry("low failure rate", gobreaker.Counts{Requests: 20, TotalFailures: 5, ConsecutiveFailures: 2}, false),
		)
	})

	Describe("Validate", func() {
		It("should require an API key", func() {
			Expect(scorer.NewDefaultConfig("").Validate()).To(MatchError(scorer.ErrMissingAPIKey))
		})

		It("should reject a negative timeout", func() {
			cfg := scorer.NewDefaultConfig("key").WithTimeout(-time.Second)
			Expect(cfg.Validate()).To(MatchError(scorer.ErrInvalidConfig))
		})

		It("should reject an enabled circuit breaker without config", func() {
			cfg := scorer.NewDefaultConfig("key").WithCircuitBreakerConfig(nil)
			Expect(cfg.Validate()).To(MatchError(scorer.ErrInvalidConfig))
		})

		DescribeTable("retry settings",
			func(rc *scorer.RetryConfig) {
				cfg := scorer.NewDefaultConfig("key").WithRetryConfig(rc)
				Expect(cfg.Validate()).To(MatchError(scorer.ErrInvalidConfig))
			},
			Entry("nil config", nil),
			Entry("unknown strategy", &scorer.RetryConfig{MaxAttempts: 3, Strategy: "linear", InitialDelay: time.Second, MaxDelay: time.Second}),
			Entry("zero attempts", &scorer.RetryConfig{MaxAttempts: 0, Strategy: scorer.RetryStrategyConstant, InitialDelay: time.Second, MaxDelay: time.Second}),
			Entry("zero initial delay", &scorer.RetryConfig{MaxAttempts: 3, Strategy: scorer.RetryStrategyFibonacci, MaxDelay: time.Second}),
			Entry("zero max delay", &scorer.RetryConfig{MaxAttempts: 3, Strategy: scorer.RetryStrategyExponential, InitialDelay: time.Second}),
		)

		It("should reject a prompt without the draft placeholder", func() {
			cfg := scorer.NewDefaultConfig("key").WithPromptTemplate("Rate the text")
			Expect(cfg.Validate()).To(MatchError(scorer.ErrInvalidConfig))
		})

		It("should reject a malformed prompt template", func() {
			cfg := scorer.NewDefaultConfig("key").WithPromptTemplate("Rate {{.Draft")
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})
})
