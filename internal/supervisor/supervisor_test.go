package supervisor

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/linjuya-lu/uart_udp_relay/internal/procmgr"
)

var loopback = net.IPv4(127, 0, 0, 1)

var _ = Describe("Supervisor", func() {
	var (
		launcher   *fakeLauncher
		notifier   *fakeNotifier
		sup        *Supervisor
		controller *net.UDPConn
		ctlPort    int
		cancel     context.CancelFunc
		runDone    chan struct{}
	)

	send := func(payload string) {
		_, err := controller.WriteToUDP([]byte(payload), &net.UDPAddr{IP: loopback, Port: ctlPort})
		Expect(err).NotTo(HaveOccurred())
	}

	// reports 收集 window 时间内控制端收到的全部回报
	reports := func(window time.Duration) []string {
		var out []string
		buf := make([]byte, 2048)
		deadline := time.Now().Add(window)
		for {
			_ = controller.SetReadDeadline(deadline)
			n, _, err := controller.ReadFromUDP(buf)
			if err != nil {
				return out
			}
			out = append(out, string(buf[:n]))
		}
	}

	BeforeEach(func() {
		var err error
		controller, err = net.ListenUDP("udp", &net.UDPAddr{IP: loopback})
		Expect(err).NotTo(HaveOccurred())

		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: loopback})
		Expect(err).NotTo(HaveOccurred())
		ctlPort = conn.LocalAddr().(*net.UDPAddr).Port

		launcher = &fakeLauncher{exitOn: []syscall.Signal{unix.SIGINT}}
		notifier = &fakeNotifier{}
		sup = New(zaptest.NewLogger(GinkgoT()).Sugar(), launcher, notifier, Options{
			ControlPort: ctlPort,
			ReportPort:  controller.LocalAddr().(*net.UDPAddr).Port,
			GracePeriod: 50 * time.Millisecond,
		})

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		runDone = make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(runDone)
			Expect(sup.Serve(ctx, conn)).To(Succeed())
		}()
	})

	AfterEach(func() {
		cancel()
		Eventually(runDone).Should(BeClosed())
		controller.Close()
	})

	It("starts in AwaitingStart", func() {
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("launches the relay toward the sender and stops it with exactly one INFO", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))
		Expect(launcher.Launches()).To(HaveLen(1))
		Expect(launcher.Launches()[0].targetIP).To(Equal("127.0.0.1"))
		Expect(launcher.Launches()[0].runID).NotTo(BeEmpty())

		send("127.0.0.1 stop")
		Eventually(sup.State).Should(Equal(StateAwaitingStart))
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("INFO: "))
		Expect(launcher.Proc(0).Signals()).To(Equal([]syscall.Signal{unix.SIGINT}))
		Eventually(notifier.Events).Should(Equal([]string{EventStart, "stopped"}))
	})

	It("ignores start while the relay is running", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))
		send("127.0.0.1 start")
		Consistently(func() int { return len(launcher.Launches()) }, 200*time.Millisecond).Should(Equal(1))
		Expect(sup.State()).To(Equal(StateAwaitingStop))
	})

	It("ignores stop when nothing is running", func() {
		send("127.0.0.1 stop")
		Expect(reports(200 * time.Millisecond)).To(BeEmpty())
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("ignores malformed packets", func() {
		send("start")
		send("127.0.0.1 reboot")
		send("garbage start")
		Expect(reports(200 * time.Millisecond)).To(BeEmpty())
		Expect(launcher.Launches()).To(BeEmpty())
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("reports exactly one ERROR when the relay dies and accepts a new start", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))

		launcher.Proc(0).exit(procmgr.ExitStatus{Code: 1, Tail: []string{"serial open failed"}})
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("ERROR: "))
		Expect(got[0]).To(ContainSubstring("serial open failed"))
		Expect(sup.State()).To(Equal(StateAwaitingStart))

		send("127.0.0.1 start")
		Eventually(func() int { return len(launcher.Launches()) }).Should(Equal(2))
		Eventually(sup.State).Should(Equal(StateAwaitingStop))
		Eventually(notifier.Events).Should(ContainElement(EventExited))
	})

	It("reports a clean exit it did not request as INFO", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))

		launcher.Proc(0).exit(procmgr.ExitStatus{Code: 0})
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("INFO: "))
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("escalates to SIGTERM when SIGINT is ignored", func() {
		launcher.mu.Lock()
		launcher.exitOn = []syscall.Signal{unix.SIGTERM}
		launcher.mu.Unlock()

		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))
		send("127.0.0.1 stop")

		got := reports(500 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("INFO: "))
		Expect(launcher.Proc(0).Signals()).To(Equal([]syscall.Signal{unix.SIGINT, unix.SIGTERM}))
	})

	It("falls through to SIGKILL when INT and TERM are both ignored", func() {
		launcher.mu.Lock()
		launcher.exitOn = nil
		launcher.mu.Unlock()

		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))
		send("127.0.0.1 stop")

		Eventually(sup.State).Should(Equal(StateAwaitingStart))
		Eventually(launcher.Proc(0).Signals).Should(Equal([]syscall.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGKILL}))
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("INFO: "))
	})

	It("reports a launch failure and stays in AwaitingStart", func() {
		launcher.mu.Lock()
		launcher.err = errors.New("permission denied")
		launcher.mu.Unlock()

		send("127.0.0.1 start")
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("ERROR: "))
		Expect(got[0]).To(ContainSubstring("permission denied"))
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("stops a running relay when the supervisor shuts down", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))

		cancel()
		Eventually(runDone).Should(BeClosed())
		Expect(launcher.Proc(0).Signals()).To(ContainElement(unix.SIGINT))
		Expect(sup.State()).To(Equal(StateAwaitingStart))

		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("INFO: "))
	})

	It("reports a SIGTERM it did not send as ERROR", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))

		launcher.Proc(0).exit(procmgr.ExitStatus{Code: -1, Signal: unix.SIGTERM})
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(got[0]).To(HavePrefix("ERROR: "))
		Expect(sup.State()).To(Equal(StateAwaitingStart))
	})

	It("keeps reports within the controller receive buffer", func() {
		send("127.0.0.1 start")
		Eventually(sup.State).Should(Equal(StateAwaitingStop))

		launcher.Proc(0).exit(procmgr.ExitStatus{Code: 2, Tail: []string{strings.Repeat("x", 4000)}})
		got := reports(300 * time.Millisecond)
		Expect(got).To(HaveLen(1))
		Expect(len(got[0])).To(BeNumerically("<=", 1024))
	})
})

var _ = Describe("truncate", func() {
	It("leaves short messages alone", func() {
		Expect(truncate("exit 1", 10)).To(Equal("exit 1"))
	})

	It("never splits a multi-byte character", func() {
		msg := strings.Repeat("a", 9) + "串口打开失败"
		out := truncate(msg, 11)
		Expect(utf8.ValidString(out)).To(BeTrue())
		Expect(out).To(Equal(strings.Repeat("a", 9)))
		Expect(truncate(msg, 12)).To(Equal(strings.Repeat("a", 9) + "串"))
	})
})
