package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"CafePos/app/config"
	"CafePos/app/errs"
	"CafePos/app/models"
)

// ESC/POS Commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	NL  byte = 0x0A
)

// PrinterService renders kitchen tickets and customer bills to an ESC/POS
// thermal printer. Connectivity is explicit state: printing against a
// disconnected printer fails with PrinterNotConnected and leaves the order's
// print flags untouched. Everything printed comes from the order snapshot;
// live menu data is never consulted.
type PrinterService struct {
	mu     sync.Mutex
	cfg    config.PrinterConfig
	conn   io.WriteCloser
	orders *OrderService
}

// NewPrinterService creates a new printer service.
func NewPrinterService(cfg config.PrinterConfig, orders *OrderService) *PrinterService {
	return &PrinterService{
		cfg:    cfg,
		orders: orders,
	}
}

// Connect dials the configured network printer.
func (s *PrinterService) Connect() error {
	if s.cfg.Address == "" {
		return errs.New(errs.KindPrinterNotConnected, "no printer address configured")
	}
	conn, err := net.DialTimeout("tcp", s.cfg.Address, 5*time.Second)
	if err != nil {
		return errs.Wrap(errs.KindPrinterNotConnected, err, "cannot reach printer at %s", s.cfg.Address)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	log.WithField("printer", s.cfg.Address).Info("printer connected")
	return nil
}

// ConnectWriter attaches an already open sink (serial port, spool file).
func (s *PrinterService) ConnectWriter(w io.WriteCloser) {
	s.mu.Lock()
	s.conn = w
	s.mu.Unlock()
}

// Disconnect drops the printer connection.
func (s *PrinterService) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// IsConnected reports whether a printer sink is attached.
func (s *PrinterService) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ticket accumulates the ESC/POS bytes of one rendering pass. Each print call
// renders into its own ticket and flushes it in a single write, so concurrent
// terminals never interleave bytes from different orders.
type ticket struct {
	buf   bytes.Buffer
	width int
}

func (s *PrinterService) newTicket() *ticket {
	return &ticket{width: s.cfg.Width}
}

// ESC/POS helper methods

func (t *ticket) init() {
	t.buf.Write([]byte{ESC, '@'})
}

func (t *ticket) write(text string) {
	t.buf.WriteString(text)
}

func (t *ticket) lineFeed() {
	t.buf.WriteByte(NL)
}

func (t *ticket) setAlign(align string) {
	var a byte = 0
	switch align {
	case "center":
		a = 1
	case "right":
		a = 2
	}
	t.buf.Write([]byte{ESC, 'a', a})
}

func (t *ticket) setEmphasize(on bool) {
	var e byte = 0
	if on {
		e = 1
	}
	t.buf.Write([]byte{ESC, 'E', e})
}

func (t *ticket) setSize(width, height byte) {
	size := ((width - 1) << 4) | (height - 1)
	t.buf.Write([]byte{GS, '!', size})
}

func (t *ticket) cut() {
	t.buf.Write([]byte{GS, 'V', 66, 0})
}

func (t *ticket) separator() string {
	return strings.Repeat("-", t.width) + "\n"
}

// printImage sends an image as a GS v 0 raster bitmap. Pixels darker than
// mid-gray print black.
func (t *ticket) printImage(img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	rowBytes := (width + 7) / 8

	t.buf.Write([]byte{GS, 'v', '0', 0,
		byte(rowBytes), byte(rowBytes >> 8),
		byte(height), byte(height >> 8)})

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := make([]byte, rowBytes)
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (299*r + 587*g + 114*b) / 1000
			if lum < 0x8000 {
				i := x - bounds.Min.X
				row[i/8] |= 0x80 >> uint(i%8)
			}
		}
		t.buf.Write(row)
	}
}

// printUPIQR renders a upi://pay QR for the order total.
func (s *PrinterService) printUPIQR(t *ticket, order *models.Order) error {
	payload := fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR&tn=%s",
		url.QueryEscape(s.cfg.UPIVPA),
		url.QueryEscape(s.cfg.UPIPayee),
		order.TotalAmount.String(),
		url.QueryEscape("Order "+shortID(order.ID)))

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate UPI QR code: %w", err)
	}
	t.setAlign("center")
	t.printImage(qr.Image(180))
	t.lineFeed()
	return nil
}

// flush sends a rendered ticket to the attached printer.
func (s *PrinterService) flush(t *ticket) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errs.New(errs.KindPrinterNotConnected, "printer is not connected")
	}

	if _, err := conn.Write(t.buf.Bytes()); err != nil {
		return errs.Wrap(errs.KindPrinterNotConnected, err, "printer write failed")
	}
	return nil
}

// PrintKOT prints the kitchen order ticket for an order and records the
// first print on the order. Reprinting on demand is allowed; the flag only
// tracks that the ticket was printed at least once.
func (s *PrinterService) PrintKOT(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !s.IsConnected() {
		return errs.New(errs.KindPrinterNotConnected, "printer is not connected")
	}

	t := s.newTicket()
	t.init()
	t.setAlign("center")
	t.setEmphasize(true)
	t.setSize(2, 2)
	t.write("KITCHEN ORDER\n")
	t.setSize(1, 1)
	t.setEmphasize(false)
	t.lineFeed()

	t.setAlign("left")
	t.write(t.separator())
	t.setEmphasize(true)
	t.write(fmt.Sprintf("Order: %s\n", shortID(order.ID)))
	t.setEmphasize(false)
	t.write(fmt.Sprintf("Time: %s\n", order.CreatedAt.Format("15:04:05")))
	t.write(fmt.Sprintf("Type: %s\n", order.OrderType))

	if order.OrderType == models.OrderTypeDineIn {
		t.setEmphasize(true)
		t.setSize(1, 2)
		t.write(fmt.Sprintf("Table: %s\n", order.TableNumber))
		t.setSize(1, 1)
		t.setEmphasize(false)
	}

	t.write(t.separator())
	for _, line := range order.Lines {
		t.setEmphasize(true)
		t.write(fmt.Sprintf("%d x %s\n", line.Quantity, line.Name))
		t.setEmphasize(false)
	}

	if order.Notes != "" {
		t.write(t.separator())
		t.setEmphasize(true)
		t.write("NOTES:\n")
		t.setEmphasize(false)
		t.write(order.Notes + "\n")
	}

	t.write(t.separator())
	t.setAlign("center")
	t.write(fmt.Sprintf("Printed: %s\n", time.Now().Format("15:04:05")))
	s.finishTicket(t)

	if err := s.flush(t); err != nil {
		return err
	}

	return s.orders.MarkKOTPrinted(ctx, orderID)
}

// PrintBill prints the customer bill for an order and records the first
// print. When a UPI collection VPA is configured the bill carries a payment
// QR for the order total.
func (s *PrinterService) PrintBill(ctx context.Context, orderID string) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !s.IsConnected() {
		return errs.New(errs.KindPrinterNotConnected, "printer is not connected")
	}

	t := s.newTicket()
	t.init()
	t.setAlign("center")
	t.setEmphasize(true)
	t.setSize(2, 2)
	t.write(s.cfg.CafeName + "\n")
	t.setSize(1, 1)
	t.setEmphasize(false)
	if s.cfg.CafeAddress != "" {
		t.write(s.cfg.CafeAddress + "\n")
	}
	if s.cfg.CafePhone != "" {
		t.write("Tel: " + s.cfg.CafePhone + "\n")
	}
	t.lineFeed()

	t.setAlign("left")
	t.write(t.separator())
	t.setEmphasize(true)
	t.write(fmt.Sprintf("Order: %s\n", shortID(order.ID)))
	t.setEmphasize(false)
	t.write(fmt.Sprintf("Date: %s\n", order.CreatedAt.Format("2006-01-02 15:04:05")))
	if order.OrderType == models.OrderTypeDineIn {
		t.write(fmt.Sprintf("Table: %s\n", order.TableNumber))
	}
	t.write(fmt.Sprintf("Served by: %s\n", order.StaffName))

	t.write(t.separator())
	for _, line := range order.Lines {
		t.write(fmt.Sprintf("%d x %s\n", line.Quantity, line.Name))
		t.write(fmt.Sprintf("  @ %s = %s\n", line.UnitPrice, line.Subtotal()))
	}

	t.write(t.separator())
	t.setAlign("right")
	t.setEmphasize(true)
	t.setSize(1, 2)
	t.write(fmt.Sprintf("TOTAL: Rs %s\n", order.TotalAmount))
	t.setSize(1, 1)
	t.setEmphasize(false)

	if order.Payment.Present() {
		t.setAlign("left")
		t.write(t.separator())
		t.write(fmt.Sprintf("Paid by: %s\n", order.Payment.Method))
		if order.Payment.Method == models.PaymentSplit {
			t.write(fmt.Sprintf("  Cash: Rs %s\n", order.Payment.CashAmount))
			t.write(fmt.Sprintf("  UPI:  Rs %s\n", order.Payment.UPIAmount))
		}
	} else if s.cfg.UPIVPA != "" {
		// Unpaid bill: offer a scan-to-pay QR.
		t.lineFeed()
		if err := s.printUPIQR(t, order); err != nil {
			log.WithError(err).Warn("skipping UPI QR on bill")
		}
	}

	t.setAlign("center")
	t.lineFeed()
	t.write("Thank you, visit again!\n")
	s.finishTicket(t)

	if err := s.flush(t); err != nil {
		return err
	}

	return s.orders.MarkBillPrinted(ctx, orderID)
}

func (s *PrinterService) finishTicket(t *ticket) {
	if s.cfg.AutoCut {
		t.cut()
	} else {
		t.lineFeed()
		t.lineFeed()
		t.lineFeed()
	}
}

// shortID is the human-readable tail of an order id, enough for a ticket.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
