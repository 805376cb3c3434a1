package transcript_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/transcript"
)

func entry(role llm.Role, content string) transcript.Entry {
	return transcript.Entry{
		Conversation: "c1",
		Domain:       "philosophy",
		Role:         role,
		Content:      content,
		Source:       transcript.SourceUser,
	}
}

var _ = Describe("Node", func() {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	Context("without a parent", func() {
		It("keeps the entry and has no parent hash", func() {
			n := transcript.NewNode(entry(llm.RoleUser, "hello"), nil, now)
			Expect(n.Entry.Content).To(Equal("hello"))
			Expect(n.ParentHash).To(BeNil())
		})

		It("produces a SHA-256 hex hash", func() {
			n := transcript.NewNode(entry(llm.RoleUser, "hello"), nil, now)
			Expect(n.Hash).To(MatchRegexp("^[a-f0-9]{64}$"))
			Expect(n.Verify()).To(BeTrue())
		})

		It("hashes the same entry the same way regardless of time", func() {
			a := transcript.NewNode(entry(llm.RoleUser, "same"), nil, now)
			b := transcript.NewNode(entry(llm.RoleUser, "same"), nil, now.Add(time.Hour))
			Expect(a.Hash).To(Equal(b.Hash))
		})

		It("hashes different entries differently", func() {
			a := transcript.NewNode(entry(llm.RoleUser, "A"), nil, now)
			b := transcript.NewNode(entry(llm.RoleUser, "B"), nil, now)
			Expect(a.Hash).NotTo(Equal(b.Hash))
		})
	})

	Context("with a parent", func() {
		var parent *transcript.Node

		BeforeEach(func() {
			parent = transcript.NewNode(entry(llm.RoleUser, "question"), nil, now)
		})

		It("links to the parent", func() {
			child := transcript.NewNode(entry(llm.RoleAssistant, "answer"), parent, now)
			Expect(child.ParentHash).To(HaveValue(Equal(parent.Hash)))
		})

		It("differs from the same entry under another parent", func() {
			other := transcript.NewNode(entry(llm.RoleUser, "other question"), nil, now)
			a := transcript.NewNode(entry(llm.RoleAssistant, "answer"), parent, now)
			b := transcript.NewNode(entry(llm.RoleAssistant, "answer"), other, now)
			Expect(a.Hash).NotTo(Equal(b.Hash))
		})

		It("detects tampering", func() {
			child := transcript.NewNode(entry(llm.RoleAssistant, "answer"), parent, now)
			child.Entry.Content = "edited"
			Expect(child.Verify()).To(BeFalse())
		})
	})
})
