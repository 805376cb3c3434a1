package domain_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dialogue/pkg/domain"
)

var _ = Describe("Config", func() {
	DescribeTable("built-in domains are valid",
		func(cfg domain.Config) {
			Expect(cfg.Validate()).To(Succeed())
		},
		Entry("philosophy", domain.Philosophy),
		Entry("finance", domain.Finance),
	)

	Describe("WrapPrompt", func() {
		It("substitutes the user's text into the template", func() {
			Expect(domain.Philosophy.WrapPrompt("X")).To(Equal("Question: X\n\nA philosophical response:"))
		})

		It("leaves placeholder text inside the user's prompt alone", func() {
			Expect(domain.Philosophy.WrapPrompt("{prompt}")).To(Equal("Question: {prompt}\n\nA philosophical response:"))
		})

		It("uses the finance report template", func() {
			Expect(domain.Finance.WrapPrompt("telehealth")).To(HavePrefix("Healthcare Financial Analysis Request: telehealth\n\n"))
		})
	})

	Describe("Validate", func() {
		var cfg domain.Config

		BeforeEach(func() {
			cfg = domain.Philosophy
		})

		It("rejects an empty fallback corpus", func() {
			cfg.Fallbacks = nil
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("fallback corpus")))
		})

		It("rejects a template without a placeholder", func() {
			cfg.PromptTemplate = "Question:"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("{prompt}")))
		})

		It("rejects a non-positive quality floor", func() {
			cfg.MinLength = 0
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("quality floor")))
		})
	})

	Describe("Lookup", func() {
		It("finds built-ins case-insensitively", func() {
			cfg, ok := domain.Lookup(" Finance ")
			Expect(ok).To(BeTrue())
			Expect(cfg.Name).To(Equal("finance"))
		})

		It("reports unknown domains", func() {
			_, ok := domain.Lookup("astrology")
			Expect(ok).To(BeFalse())
		})

		It("lists every built-in", func() {
			for _, name := range domain.Names() {
				_, ok := domain.Lookup(name)
				Expect(ok).To(BeTrue())
			}
		})
	})
})
