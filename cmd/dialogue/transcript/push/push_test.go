package pushcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
	"github.com/papercomputeco/dialogue/pkg/transcript"
	"github.com/papercomputeco/dialogue/server"
)

var _ = Describe("Push Command", func() {
	var (
		ctx       context.Context
		tmpDir    string
		localPath string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "dialogue-push-test-*")
		Expect(err).NotTo(HaveOccurred())
		GinkgoT().Setenv("HOME", tmpDir)
		localPath = filepath.Join(tmpDir, "local.sqlite")
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	makeNode := func(role llm.Role, text string, parent *transcript.Node) *transcript.Node {
		return transcript.NewNode(transcript.Entry{
			Conversation: "push-test",
			Domain:       "finance",
			Role:         role,
			Content:      text,
			Source:       transcript.SourceFallback,
		}, parent, time.Now())
	}

	seedLocal := func(nodes ...*transcript.Node) {
		local, err := transcript.NewSQLiteStorer(localPath)
		Expect(err).NotTo(HaveOccurred())
		defer local.Close()
		for _, n := range nodes {
			_, err := local.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	startServer := func() (string, *transcript.MemoryStorer, func()) {
		serverStorer := transcript.NewMemoryStorer()

		srv, err := server.New(server.Config{ListenAddr: ":0"}, gateway.Disabled, serverStorer, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		go func() {
			_ = srv.RunWithListener(listener)
		}()

		addr := "http://" + listener.Addr().String()
		cleanup := func() {
			srv.Shutdown()
			srv.Close()
		}
		return addr, serverStorer, cleanup
	}

	It("pushes local nodes to a remote server", func() {
		nodeA := makeNode(llm.RoleUser, "hello from push test", nil)
		nodeB := makeNode(llm.RoleAssistant, "hi back from push test", nodeA)
		seedLocal(nodeA, nodeB)

		addr, serverStorer, cleanup := startServer()
		defer cleanup()

		cmd := NewPushCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--sqlite", localPath, addr})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		nodes, err := serverStorer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(2))
		Expect(out.String()).To(ContainSubstring("Pushed 2 new nodes"))
	})

	It("deduplicates on double push", func() {
		seedLocal(makeNode(llm.RoleUser, "dedup push test", nil))

		addr, serverStorer, cleanup := startServer()
		defer cleanup()

		for range 2 {
			cmd := NewPushCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{"--sqlite", localPath, addr})
			Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		}

		nodes, err := serverStorer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(nodes).To(HaveLen(1))
	})

	It("sends nodes in batches", func() {
		root := makeNode(llm.RoleUser, "first", nil)
		nodes := []*transcript.Node{root}
		for i := range 4 {
			nodes = append(nodes, makeNode(llm.RoleAssistant, string(rune('a'+i)), nodes[len(nodes)-1]))
		}
		seedLocal(nodes...)

		addr, serverStorer, cleanup := startServer()
		defer cleanup()

		cmd := NewPushCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--sqlite", localPath, "--batch-size", "2", addr})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())

		stored, err := serverStorer.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored).To(HaveLen(5))
	})

	It("reports an empty local database", func() {
		seedLocal()

		cmd := NewPushCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--sqlite", localPath, "http://127.0.0.1:1"})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No local nodes"))
	})

	It("fails when the server rejects the request", func() {
		seedLocal(makeNode(llm.RoleUser, "nowhere to go", nil))

		srv, err := server.New(server.Config{}, gateway.Disabled, nil, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = srv.RunWithListener(listener) }()
		defer srv.Shutdown()

		cmd := NewPushCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--sqlite", localPath, "http://" + listener.Addr().String()})
		Expect(cmd.ExecuteContext(ctx)).To(MatchError(ContainSubstring("server returned 404")))
	})

	It("keeps pushing after a failed batch and reports it", func() {
		root := makeNode(llm.RoleUser, "first", nil)
		nodes := []*transcript.Node{root}
		for i := range 5 {
			nodes = append(nodes, makeNode(llm.RoleAssistant, string(rune('a'+i)), nodes[len(nodes)-1]))
		}
		seedLocal(nodes...)

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				http.Error(w, "storage unavailable", http.StatusInternalServerError)
				return
			}
			var batch []*transcript.Node
			if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(server.IngestResponse{New: len(batch)})
		}))
		defer ts.Close()

		cmd := NewPushCmd()
		var out, errOut bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&errOut)
		cmd.SetArgs([]string{"--sqlite", localPath, "--batch-size", "2", ts.URL})

		err := cmd.ExecuteContext(ctx)
		Expect(err).To(MatchError(ContainSubstring("1 of 3 batches failed")))
		Expect(err).To(MatchError(ContainSubstring("server returned 500")))
		Expect(calls.Load()).To(BeEquivalentTo(3))
		Expect(out.String()).To(ContainSubstring("Pushed 4 new nodes"))
		Expect(errOut.String()).To(ContainSubstring("batch 0-1"))
	})
})
