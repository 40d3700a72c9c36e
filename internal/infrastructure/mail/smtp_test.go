package mail

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/petclinic/auth-service/internal/core/domain"
)

type received struct {
	from, to string
	data     string
}

// startFakeSMTP accepts one session and reports what the client sent.
func startFakeSMTP(t *testing.T) (host string, port int, got <-chan received) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	out := make(chan received, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		w := bufio.NewWriter(conn)
		write := func(s string) {
			fmt.Fprint(w, s)
			w.Flush()
		}

		var msg received
		write("220 localhost ESMTP\r\n")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.TrimSpace(line)
			upper := strings.ToUpper(cmd)
			switch {
			case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
				write("250-localhost\r\n250 PIPELINING\r\n")
			case strings.HasPrefix(upper, "MAIL FROM:"):
				msg.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
				write("250 OK\r\n")
			case strings.HasPrefix(upper, "RCPT TO:"):
				msg.to = strings.Trim(cmd[len("RCPT TO:"):], "<> ")
				write("250 OK\r\n")
			case upper == "DATA":
				write("354 End data with <CR><LF>.<CR><LF>\r\n")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil || strings.TrimSpace(l) == "." {
						break
					}
					b.WriteString(l)
				}
				msg.data = b.String()
				write("250 Message accepted\r\n")
			case upper == "QUIT":
				write("221 Bye\r\n")
				out <- msg
				return
			default:
				write("250 OK\r\n")
			}
		}
	}()

	h, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)
	return h, port, out
}

func TestSMTPSender_Send(t *testing.T) {
	host, port, got := startFakeSMTP(t)
	sender := NewSMTPSender(Config{Host: host, Port: port, From: "noreply@petclinic.test", SenderName: "PetClinic"})

	err := sender.Send(context.Background(), domain.Mail{
		To:      "alice@example.com",
		Subject: "Verify your PetClinic account",
		Body:    "<p>hello</p>",
		HTML:    true,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case msg := <-got:
		if msg.from != "noreply@petclinic.test" || msg.to != "alice@example.com" {
			t.Fatalf("unexpected envelope %+v", msg)
		}
		if !strings.Contains(msg.data, "Subject: Verify your PetClinic account") {
			t.Fatalf("subject missing from message:\n%s", msg.data)
		}
		if !strings.Contains(msg.data, "Content-Type: text/html") {
			t.Fatalf("expected html content type:\n%s", msg.data)
		}
		if !strings.Contains(msg.data, "From: PetClinic <noreply@petclinic.test>") {
			t.Fatalf("expected display name in From:\n%s", msg.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fake server never received the message")
	}
}

func TestSMTPSender_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	_, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(p)
	ln.Close()

	sender := NewSMTPSender(Config{Host: "127.0.0.1", Port: port, From: "a@b.c", Timeout: time.Second})
	if err := sender.Send(context.Background(), domain.Mail{To: "x@example.com"}); err == nil {
		t.Fatalf("expected dial error")
	}
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	s := NewLogSender(zerolog.New(&buf))

	if err := s.Send(context.Background(), domain.Mail{To: "x@example.com", Subject: "hi", Body: "secret-link"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(buf.String(), "x@example.com") {
		t.Fatalf("expected recipient in log: %s", buf.String())
	}
	if strings.Contains(buf.String(), "secret-link") {
		t.Fatalf("mail body must not be logged")
	}
}
