package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

type screenFunc func(string) string

func (f screenFunc) Screen(from string) string { return f(from) }

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func message(id int64, email string, age time.Duration) *InboundMessage {
	return &InboundMessage{
		ItemID:    id,
		FromName:  "Sender",
		FromEmail: email,
		Subject:   "Question",
		Body:      "Hello",
		CreatedAt: fixedNow.Add(-age),
	}
}

type pipelineFixture struct {
	ws       *fakeWorkspace
	mailer   *fakeMailer
	llm      *fakeLLM
	out      *bytes.Buffer
	pipeline *Pipeline
}

func newPipelineFixture(source MessageSource, responses []string, screen SenderScreen, maxMessages int) *pipelineFixture {
	f := &pipelineFixture{
		ws:     newFakeWorkspace(),
		mailer: &fakeMailer{},
		llm:    &fakeLLM{responses: responses},
		out:    &bytes.Buffer{},
	}
	logger := zap.NewNop()
	markers := []string{"GlobiMail Activated"}
	detector := NewReplyDetector(f.ws, nil, markers, noWait{}, logger)
	classifier := NewClassifier(f.llm, "KNOWLEDGE", 150, 0, time.Millisecond, logger)
	dispatcher := NewDispatcher(f.ws, f.mailer, nil, 0, f.out, logger)
	f.pipeline = NewPipeline(source, screen, detector, classifier, dispatcher, noWait{}, maxMessages, f.out, logger)
	f.pipeline.now = func() time.Time { return fixedNow }
	return f
}

func TestPipelineCollect(t *testing.T) {
	day := 24 * time.Hour
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "noreply@example.com", 2*time.Hour),
		message(3, "b@example.com", 3*time.Hour),
		message(1, "a@example.com", time.Hour),
		message(4, "c@example.com", 4*time.Hour),
		message(5, "d@example.com", 8*day),
	}}
	screen := screenFunc(func(from string) string {
		if strings.Contains(from, "noreply") {
			return "noreply"
		}
		return ""
	})
	f := newPipelineFixture(src, nil, screen, 20)
	f.ws.comments[3] = []Comment{{Value: "Answered on the phone"}}
	f.ws.comments[4] = []Comment{{Value: "GlobiMail Activated"}}

	got, err := f.pipeline.Collect(context.Background(), fixedNow.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	var ids []int64
	for _, m := range got {
		ids = append(ids, m.ItemID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Errorf("collected %v, want [1 4]", ids)
	}
}

func TestPipelineCollectCap(t *testing.T) {
	var msgs []*InboundMessage
	for i := int64(1); i <= 30; i++ {
		msgs = append(msgs, message(i, "p@example.com", time.Duration(i)*time.Minute))
	}
	f := newPipelineFixture(&fakeSource{messages: msgs}, nil, screenNone{}, 20)

	got, err := f.pipeline.Collect(context.Background(), fixedNow.AddDate(0, 0, -7))
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(got) != 20 {
		t.Errorf("collected %d, want 20", len(got))
	}
	if f.ws.listCalls != 20 {
		t.Errorf("listCalls = %d, want fetching to stop at the cap", f.ws.listCalls)
	}
}

func TestPipelineCollectSourceError(t *testing.T) {
	cause := errors.New("401 unauthorized")
	src := &fakeSource{messages: []*InboundMessage{message(1, "a@example.com", time.Hour)}, err: cause}
	f := newPipelineFixture(src, nil, screenNone{}, 20)

	got, err := f.pipeline.Collect(context.Background(), fixedNow.AddDate(0, 0, -7))
	if !errors.Is(err, cause) {
		t.Fatalf("error = %v, want %v", err, cause)
	}
	if len(got) != 1 {
		t.Errorf("messages before the error should be kept, got %d", len(got))
	}
}

func TestPipelineRunDraft(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "b@example.com", time.Hour),
		message(3, "c@example.com", time.Hour),
	}}
	f := newPipelineFixture(src, []string{answerableJSON, needsHumanJSON, skipJSON}, screenNone{}, 20)

	stats, err := f.pipeline.Run(context.Background(), ModeDraft, 7)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := RunStats{Processed: 3, Answerable: 1, NeedsHuman: 1, Skipped: 1}
	if *stats != want {
		t.Errorf("stats = %+v, want %+v", *stats, want)
	}
	if !strings.HasPrefix(f.ws.added[1][0], DraftCommentHeader) {
		t.Errorf("item 1 comment = %q", f.ws.added[1][0])
	}
	if !strings.HasPrefix(f.ws.added[2][0], FlagComment+"\n\n(run ") {
		t.Errorf("item 2 comment = %q", f.ws.added[2][0])
	}
	if len(f.ws.added[3]) != 0 {
		t.Errorf("skipped item got comments %v", f.ws.added[3])
	}
	if len(f.mailer.sent) != 0 {
		t.Error("draft mode must not send")
	}

	out := f.out.String()
	for _, want := range []string{"draft mode", "Found 3 unreplied emails", "[1/3]", "SUMMARY (draft mode)", "Processed: 3 emails"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "Sent:") {
		t.Error("draft summary should not report sends")
	}
}

func TestPipelineRunSend(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "b@example.com", time.Hour),
	}}
	f := newPipelineFixture(src, []string{answerableJSON}, screenNone{}, 20)

	stats, err := f.pipeline.Run(context.Background(), ModeSend, 7)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Sent != 2 || stats.Errors != 0 || stats.Answerable != 2 {
		t.Errorf("stats = %+v", *stats)
	}
	for _, id := range []int64{1, 2} {
		if len(f.ws.added[id]) != 1 || !strings.HasPrefix(f.ws.added[id][0], SentCommentHeader) {
			t.Errorf("item %d comments = %v, want one sent comment", id, f.ws.added[id])
		}
	}
	if !strings.Contains(f.out.String(), "Sent: 2") {
		t.Error("send summary should report sends")
	}
}

func TestPipelineRunSendFailureCounted(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{message(1, "a@example.com", time.Hour)}}
	f := newPipelineFixture(src, []string{answerableJSON}, screenNone{}, 20)
	f.mailer.err = errors.New("relay down")

	stats, err := f.pipeline.Run(context.Background(), ModeSend, 7)
	if err != nil {
		t.Fatalf("send failures should not halt the run: %v", err)
	}
	if stats.Sent != 0 || stats.Errors != 1 {
		t.Errorf("stats = %+v", *stats)
	}
	if f.ws.totalAdded() != 0 {
		t.Error("failed send must not leave a comment")
	}
}

func TestPipelineRunSendAuthFailureHalts(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "b@example.com", time.Hour),
		message(3, "c@example.com", time.Hour),
	}}
	f := newPipelineFixture(src, []string{answerableJSON}, screenNone{}, 20)
	f.mailer.err = fmt.Errorf("AUTH failed: %w", ErrMailAuth)

	stats, err := f.pipeline.Run(context.Background(), ModeSend, 7)
	if !errors.Is(err, ErrMailAuth) {
		t.Fatalf("Run() error = %v, want ErrMailAuth", err)
	}
	if f.llm.calls != 1 {
		t.Errorf("model calls = %d, want 1", f.llm.calls)
	}
	if stats.Processed != 1 || stats.Sent != 0 || stats.Errors != 1 {
		t.Errorf("stats = %+v", *stats)
	}
	if f.ws.totalAdded() != 0 {
		t.Error("no comments expected after a rejected login")
	}
}

func TestPipelineDryRunIsRepeatable(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "b@example.com", time.Hour),
	}}
	f := newPipelineFixture(src, []string{answerableJSON, needsHumanJSON}, screenNone{}, 20)

	first, err := f.pipeline.Run(context.Background(), ModeDryRun, 7)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	f.llm.calls = 0
	second, err := f.pipeline.Run(context.Background(), ModeDryRun, 7)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if *first != *second {
		t.Errorf("dry runs differ: %+v vs %+v", *first, *second)
	}
	if f.ws.totalAdded() != 0 || len(f.mailer.sent) != 0 {
		t.Error("dry run must not comment or send")
	}
}

func TestPipelineRunModelFailureHalts(t *testing.T) {
	src := &fakeSource{messages: []*InboundMessage{
		message(1, "a@example.com", time.Hour),
		message(2, "b@example.com", time.Hour),
	}}
	f := newPipelineFixture(src, nil, screenNone{}, 20)
	f.llm.errs = []error{errors.New("503")}

	stats, err := f.pipeline.Run(context.Background(), ModeDraft, 7)
	if err == nil {
		t.Fatal("expected the run to halt")
	}
	if stats.Processed != 0 {
		t.Errorf("Processed = %d, want 0", stats.Processed)
	}
	if f.ws.totalAdded() != 0 {
		t.Error("no comments expected after a model failure")
	}
}

func TestPipelineRunNothingToDo(t *testing.T) {
	f := newPipelineFixture(&fakeSource{}, nil, screenNone{}, 20)
	stats, err := f.pipeline.Run(context.Background(), ModeSend, 7)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if *stats != (RunStats{}) {
		t.Errorf("stats = %+v", *stats)
	}
	if !strings.Contains(f.out.String(), "No unreplied emails") {
		t.Errorf("output = %q", f.out.String())
	}
}

func TestPipelineCampPricingDraft(t *testing.T) {
	const registration = "https://appserv7.admin.uillinois.edu/FormBuilderSurvey/Survey/gies_college_of_business/illinois_makerlab/summer_2026/"
	msg := &InboundMessage{
		ItemID:    101,
		FromName:  "Jane Doe",
		FromEmail: "jane@example.com",
		Subject:   "Summer camp pricing?",
		Body:      "How much are the summer camps?",
		CreatedAt: fixedNow.Add(-time.Hour),
	}
	reply := `{"classification":"ANSWERABLE","confidence":0.95,"reason":"camp pricing is on the website","reply_html":"<p>Hi Jane,</p><p>Camps are $250/week, or $225 with early bird pricing. Register here: <a href=\"` + registration + `\">registration</a></p>"}`

	logger := zap.NewNop()
	ws := newFakeWorkspace()
	llm := &fakeLLM{responses: []string{reply}}
	knowledge := "SUMMER CAMPS 2026\nRegistration: " + registration
	p := NewPipeline(
		&fakeSource{messages: []*InboundMessage{msg}},
		screenNone{},
		NewReplyDetector(ws, nil, nil, noWait{}, logger),
		NewClassifier(llm, knowledge, 150, 0, time.Millisecond, logger),
		NewDispatcher(ws, nil, nil, 0, nil, logger),
		noWait{},
		20,
		nil,
		logger,
	)
	p.now = func() time.Time { return fixedNow }

	stats, err := p.Run(context.Background(), ModeDraft, 7)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.Answerable != 1 {
		t.Fatalf("stats = %+v", *stats)
	}
	if !strings.Contains(llm.prompts[0], registration) {
		t.Error("prompt should carry the registration link")
	}
	comments := ws.added[101]
	if len(comments) != 1 || !strings.HasPrefix(comments[0], DraftCommentHeader) || !strings.Contains(comments[0], registration) {
		t.Errorf("comments = %v, want one draft with the registration link", comments)
	}
}
