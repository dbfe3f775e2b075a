// interviewcli drives a mock interview against a running backend from the
// terminal: it opens a session over the websocket channel, reads candidate
// answers from stdin, and prints the streamed interviewer turns.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prepdeck/backend/internal/client"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	server := flag.String("server", "ws://localhost:8080/api/ws", "websocket channel endpoint")
	resumeID := flag.String("resume", "", "resume id returned by POST /api/resumes")
	jd := flag.String("jd", "", "job description text")
	limit := flag.Int("limit", 0, "question limit (0 uses the server default)")
	voice := flag.Bool("voice", false, "exercise the playback path with a silent speaker")
	flag.Parse()

	if *resumeID == "" {
		flag.Usage()
		log.Fatal("specify the resume with -resume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := client.Dial(ctx, *server)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *server, err)
	}
	defer transport.Close()

	textInput := make(chan string)
	go readStdin(ctx, textInput)

	cfg := client.Config{
		Transport: transport,
		Display:   consoleDisplay{},
		TextInput: textInput,
		Open: client.OpenRequest{
			ResumeID:       *resumeID,
			JobDescription: *jd,
			QuestionLimit:  *limit,
		},
	}
	if *voice {
		cfg.Speaker = newSilentSpeaker()
		cfg.AutoVoice = true
	}

	loop, err := client.New(cfg)
	if err != nil {
		log.Fatalf("failed to build client loop: %v", err)
	}

	feedback, err := loop.Run(ctx)
	if err != nil {
		log.Fatalf("interview ended abnormally: %v", err)
	}

	fmt.Println("\n=== Evaluation ===")
	if feedback == nil {
		fmt.Println("no evaluation report received")
		return
	}
	fmt.Printf("Technical:     %d/10\n", feedback.TechnicalScore)
	fmt.Printf("Communication: %d/10\n", feedback.CommunicationScore)
	for _, s := range feedback.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, w := range feedback.Weaknesses {
		fmt.Printf("  - %s\n", w)
	}
	fmt.Println(feedback.Summary)
}

func readStdin(ctx context.Context, out chan<- string) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}

// silentSpeaker drives the playback state transitions without audio
// hardware: each Speak finishes instantly.
type silentSpeaker struct {
	done chan struct{}
}

func newSilentSpeaker() *silentSpeaker {
	return &silentSpeaker{done: make(chan struct{}, 1)}
}

func (s *silentSpeaker) Speak(ctx context.Context, text string) error {
	s.done <- struct{}{}
	return nil
}

func (s *silentSpeaker) Done() <-chan struct{} {
	return s.done
}

// consoleDisplay prints loop output to stdout.
type consoleDisplay struct{}

func (consoleDisplay) ShowOpening(text string) {
	fmt.Printf("\nInterviewer: %s\n> ", text)
}

func (consoleDisplay) ShowFragment(text string) {
	fmt.Print(text)
}

func (consoleDisplay) ShowAnswerDone() {
	fmt.Print("\n> ")
}

func (consoleDisplay) ShowError(kind, message string) {
	fmt.Printf("\n[%s] %s\n> ", kind, message)
}
