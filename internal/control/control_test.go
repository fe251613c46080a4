package control_test

import (
	"errors"
	"net"
	"time"

	"github.com/linjuya-lu/uart_udp_relay/internal/control"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseCommand", func() {
	It("accepts start and stop", func() {
		p, err := control.ParseCommand([]byte("192.168.1.10 start"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.SenderIP.String()).To(Equal("192.168.1.10"))
		Expect(p.Command).To(Equal(control.CommandStart))

		p, err = control.ParseCommand([]byte("10.0.0.1 stop\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Command).To(Equal(control.CommandStop))
	})

	DescribeTable("rejects malformed packets",
		func(in string) {
			_, err := control.ParseCommand([]byte(in))
			Expect(errors.Is(err, control.ErrMalformed)).To(BeTrue(), "input %q", in)
		},
		Entry("empty", ""),
		Entry("single field", "start"),
		Entry("three fields", "10.0.0.1 start now"),
		Entry("double space", "10.0.0.1  start"),
		Entry("bad ip", "not-an-ip start"),
		Entry("unknown command", "10.0.0.1 restart"),
		Entry("wrong case", "10.0.0.1 START"),
	)

	It("round-trips through FormatCommand", func() {
		p, err := control.ParseCommand(control.FormatCommand(net.ParseIP("127.0.0.1"), control.CommandStop))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.String()).To(Equal("127.0.0.1 stop"))
	})
})

var _ = Describe("Reports", func() {
	It("formats severity prefixes", func() {
		Expect(string(control.FormatReport(control.SeverityInfo, "relay stopped"))).To(Equal("INFO: relay stopped"))
		Expect(string(control.FormatReport(control.SeverityError, "exit status 1"))).To(Equal("ERROR: exit status 1"))
	})

	It("parses what it formats and rejects unknown severities", func() {
		r, err := control.ParseReport([]byte("ERROR: boom: more"))
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(control.Report{Severity: control.SeverityError, Message: "boom: more"}))

		_, err = control.ParseReport([]byte("WARN: x"))
		Expect(err).To(HaveOccurred())
	})

	It("sends reports over UDP to the controller port", func() {
		recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		Expect(err).NotTo(HaveOccurred())
		defer recv.Close()

		send, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		Expect(err).NotTo(HaveOccurred())
		defer send.Close()

		r := control.NewUDPReporter(send, recv.LocalAddr().(*net.UDPAddr).Port)
		Expect(r.Report(net.IPv4(127, 0, 0, 1), control.SeverityInfo, "hello")).To(Succeed())

		buf := make([]byte, 1024)
		Expect(recv.SetReadDeadline(time.Now().Add(time.Second))).To(Succeed())
		n, _, err := recv.ReadFromUDP(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf[:n])).To(Equal("INFO: hello"))
	})
})
