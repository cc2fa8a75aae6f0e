package socket_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mythologiq/gg-core/socket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSocket(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Socket Suite")
}

func testSocketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("gg-core-test-%d.sock", time.Now().UnixNano()))
}

func echoHandler(c socket.Context) {
	defer c.Close()
	buf := make([]byte, 1024)
	for {
		n, err := c.Read(buf)
		if err != nil {
			return
		}
		if n > 0 {
			if _, err := c.Write(buf[:n]); err != nil {
				return
			}
		}
	}
}

var _ = Describe("Server", func() {
	var (
		path string
		srv  *socket.Server
	)

	BeforeEach(func() {
		path = testSocketPath()
		var err error
		srv, err = socket.New(nil, echoHandler, socket.Config{SocketPath: path, GroupID: -1})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = srv.Close()
		_ = os.Remove(path)
	})

	It("rejects a nil handler", func() {
		_, err := socket.New(nil, nil, socket.Config{SocketPath: path, GroupID: -1})
		Expect(err).To(Equal(socket.ErrInvalidHandler))
	})

	It("rejects an empty socket path", func() {
		_, err := socket.New(nil, echoHandler, socket.Config{GroupID: -1})
		Expect(err).To(Equal(socket.ErrInvalidConfig))
	})

	It("starts idle and reports IsGone before Listen", func() {
		Expect(srv.IsRunning()).To(BeFalse())
		Expect(srv.IsGone()).To(BeTrue())
		Expect(srv.OpenConnections()).To(Equal(int64(0)))
	})

	It("accepts a connection and echoes data", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() { _ = srv.Listen(ctx) }()
		Eventually(func() bool { return srv.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeTrue())

		var conn net.Conn
		Eventually(func() error {
			c, err := net.Dial("unix", path)
			if err == nil {
				conn = c
			}
			return err
		}, time.Second, 5*time.Millisecond).Should(Succeed())
		defer conn.Close()

		msg := []byte("hello gg-core")
		_, err := conn.Write(msg)
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, len(msg))
		_, err = conn.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf).To(Equal(msg))

		Eventually(func() int64 { return srv.OpenConnections() }, time.Second, 5*time.Millisecond).Should(Equal(int64(1)))
	})

	It("drops connections beyond MaxConnections", func() {
		srv2, err := socket.New(nil, echoHandler, socket.Config{SocketPath: path, GroupID: -1, MaxConnections: 1})
		Expect(err).NotTo(HaveOccurred())
		defer srv2.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = srv2.Listen(ctx) }()
		Eventually(func() bool { return srv2.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeTrue())

		c1, err := net.Dial("unix", path)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		Eventually(func() int64 { return srv2.OpenConnections() }, time.Second, 5*time.Millisecond).Should(Equal(int64(1)))

		c2, err := net.Dial("unix", path)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		c2.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		buf := make([]byte, 1)
		_, err = c2.Read(buf)
		Expect(err).To(HaveOccurred())
	})

	It("stops the accept loop on context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = srv.Listen(ctx) }()
		Eventually(func() bool { return srv.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeTrue())

		cancel()
		Eventually(func() bool { return srv.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeFalse())
		Expect(srv.IsGone()).To(BeTrue())
	})

	It("removes the socket file on Close", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = srv.Listen(ctx) }()
		Eventually(func() bool { return srv.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeTrue())

		Expect(srv.Close()).To(Succeed())
		Eventually(func() bool { return srv.IsRunning() }, time.Second, 5*time.Millisecond).Should(BeFalse())

		_, err := os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})

var _ = Describe("ReadFrame/WriteFrame", func() {
	It("round-trips a payload through a pipe", func() {
		r, w := net.Pipe()
		defer r.Close()
		defer w.Close()

		go func() { _ = socket.WriteFrame(w, []byte("payload")) }()

		got, err := socket.ReadFrame(r)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]byte("payload")))
	})

	It("rejects an oversize frame before writing", func() {
		oversized := make([]byte, 16*1024*1024+1)
		err := socket.WriteFrame(new(discardWriter), oversized)
		Expect(err).To(HaveOccurred())
	})
})

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
