package serial

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/linjuya-lu/uart_udp_relay/internal/serial/serialtest"
)

var _ = Describe("Framing", func() {
	DescribeTable("Validate",
		func(f Framing, ok bool) {
			err := f.Validate()
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(errors.Is(err, ErrFraming)).To(BeTrue(), "got %v", err)
			}
		},
		Entry("8N1", Framing{BaudRate: 9600, DataBits: 8, Parity: ParityNone, StopBits: Stop1}, true),
		Entry("7E2", Framing{BaudRate: 19200, DataBits: 7, Parity: ParityEven, StopBits: Stop2}, true),
		Entry("5N1.5", Framing{BaudRate: 1200, DataBits: 5, Parity: ParityNone, StopBits: Stop1Half}, true),
		Entry("8S1", Framing{BaudRate: 9600, DataBits: 8, Parity: ParitySpace, StopBits: Stop1}, true),
		Entry("8N1.5 needs 5 data bits", Framing{BaudRate: 9600, DataBits: 8, Parity: ParityNone, StopBits: Stop1Half}, false),
		Entry("5N2", Framing{BaudRate: 9600, DataBits: 5, Parity: ParityNone, StopBits: Stop2}, false),
		Entry("9 data bits", Framing{BaudRate: 9600, DataBits: 9, Parity: ParityNone, StopBits: Stop1}, false),
		Entry("zero baud", Framing{BaudRate: 0, DataBits: 8, Parity: ParityNone, StopBits: Stop1}, false),
		Entry("bad parity", Framing{BaudRate: 9600, DataBits: 8, Parity: 'X', StopBits: Stop1}, false),
	)

	It("parses parity names by their first letter", func() {
		for in, want := range map[string]Parity{
			"None": ParityNone, "even": ParityEven, "Odd": ParityOdd, "M": ParityMark, "space": ParitySpace, "": ParityNone,
		} {
			p, err := ParseParity(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(Equal(want), in)
		}
		_, err := ParseParity("Xtra")
		Expect(errors.Is(err, ErrFraming)).To(BeTrue())
	})

	It("parses stop bits", func() {
		s, err := ParseStopBits(1.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(Stop1Half))
		_, err = ParseStopBits(3)
		Expect(errors.Is(err, ErrFraming)).To(BeTrue())
	})

	It("formats as the usual shorthand", func() {
		Expect(Framing{BaudRate: 9600, DataBits: 8, Parity: ParityNone, StopBits: Stop1}.String()).To(Equal("9600 8N1"))
	})
})

var _ = Describe("NewPort", func() {
	framing := Framing{BaudRate: 9600, DataBits: 8, Parity: ParityNone, StopBits: Stop1}

	It("rejects unknown backends", func() {
		_, err := NewPort(Config{Device: "/dev/null", Framing: framing, Backend: "nope"})
		Expect(err).To(MatchError(ContainSubstring("unknown serial backend")))
	})

	It("rejects invalid framing before touching the device", func() {
		_, err := NewPort(Config{Device: "/dev/does-not-exist", Framing: Framing{BaudRate: 9600, DataBits: 4}})
		Expect(errors.Is(err, ErrFraming)).To(BeTrue())
	})

	It("selects the backend", func() {
		p, err := NewPort(Config{Name: "a", Device: "/dev/ttyS0", Framing: framing, Backend: BackendTarm})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&RS232Port{}))
		Expect(p.Name()).To(Equal("a"))

		p, err = NewPort(Config{Name: "b", Device: "/dev/ttyS0", Framing: framing})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&UARTPort{}))
	})

	It("wraps the port for RS-485 when a DE pin is set", func() {
		p, err := NewPort(Config{Device: "/dev/ttyS0", Framing: framing, DEPin: 17})
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&RS485Port{}))
	})
})

var _ = Describe("RS485Port", func() {
	var (
		oldRoot string
		dir     string
	)

	BeforeEach(func() {
		oldRoot = gpioRoot
		dir = GinkgoT().TempDir()
		gpioRoot = dir
		Expect(os.WriteFile(filepath.Join(dir, "export"), nil, 0o600)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(dir, "gpio5"), 0o700)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "gpio5", "direction"), nil, 0o600)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "gpio5", "value"), nil, 0o600)).To(Succeed())
	})

	AfterEach(func() {
		gpioRoot = oldRoot
	})

	It("drives DE high around each write and passes data through", func() {
		inner := serialtest.NewFake("rs485")
		p := NewRS485Port(inner, 5, 115200)
		Expect(p.Open()).To(Succeed())

		n, err := p.Write([]byte("ping"))
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(4))
		Expect(inner.Written()).To(Equal([]byte("ping")))

		Expect(p.Close()).To(Succeed())
		Expect(inner.Closed()).To(BeTrue())

		value, err := os.ReadFile(filepath.Join(dir, "gpio5", "value"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(value)).To(Equal("010"))
		direction, _ := os.ReadFile(filepath.Join(dir, "gpio5", "direction"))
		Expect(string(direction)).To(Equal("out"))
	})

	It("releases the GPIO when the serial device fails to open", func() {
		inner := serialtest.NewFake("rs485")
		inner.OpenErr = errors.New("busy")
		p := NewRS485Port(inner, 5, 9600)
		Expect(p.Open()).To(MatchError("busy"))
	})
})
