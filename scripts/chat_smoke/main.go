package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	if err := run(); err != nil {
		log.Printf("chat_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	room := flag.String("room", "general", "room name")
	nick := flag.String("nick", "tester", "nickname to claim")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cookie jar: %w", err)
	}
	client := &http.Client{Jar: jar}
	roomURL := strings.TrimRight(*addr, "/") + "/" + url.PathEscape(*room) + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, roomURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("open stream: unexpected status %s", resp.Status)
	}

	post := func(form url.Values) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, roomURL, strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", form.Get("mode"), err)
		}
		defer r.Body.Close()
		if r.StatusCode != http.StatusOK {
			return fmt.Errorf("post %s: unexpected status %s", form.Get("mode"), r.Status)
		}
		return nil
	}

	frames := make(chan string)
	go readFrames(resp, frames)

	sent := false
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil
			}
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return errors.New("stream closed")
			}
			fmt.Printf("Received frame:\n%s\n\n", frame)

			if !sent && strings.HasPrefix(frame, "event: join") {
				sent = true
				if err := post(url.Values{"mode": {"nick"}, "message": {*nick}}); err != nil {
					return err
				}
				if err := post(url.Values{"mode": {"names"}}); err != nil {
					return err
				}
				if err := post(url.Values{"mode": {"message"}, "message": {*text}}); err != nil {
					return err
				}
			}
		}
	}
}

// readFrames splits the stream into frames on blank lines. Comment frames are skipped.
func readFrames(resp *http.Response, out chan<- string) {
	defer close(out)

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			if !strings.HasPrefix(line, ":") {
				lines = append(lines, line)
			}
			continue
		}
		if len(lines) > 0 {
			out <- strings.Join(lines, "\n")
			lines = lines[:0]
		}
	}
}
