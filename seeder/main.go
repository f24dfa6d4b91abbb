// Fills an SQS queue with attribute-carrying test messages so relay runs have
// something to move.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/xid"
)

// SQS caps batched sends at 10 entries
const maxEntriesPerBatch = 10

var (
	queueURL         string
	region           string
	numberOfMessages int
	concurrency      int
	entriesPerBatch  int
	sendTimeout      time.Duration
)

func init() {
	queueURL = getEnv("SQS_QUEUE_URL", "")
	if queueURL == "" {
		fmt.Fprintf(os.Stderr, "ERROR: SQS_QUEUE_URL environment variable is required\n")
		os.Exit(1)
	}

	region = getEnv("AWS_REGION", "us-east-1")
	numberOfMessages = getEnvInt("SEED_MESSAGES", 500)
	concurrency = getEnvInt("SEED_CONCURRENCY", 4)
	entriesPerBatch = getEnvInt("SEED_BATCH", maxEntriesPerBatch)
	sendTimeout = time.Duration(getEnvInt("SEED_TIMEOUT_SECONDS", 30)) * time.Second

	if entriesPerBatch < 1 || entriesPerBatch > maxEntriesPerBatch {
		entriesPerBatch = maxEntriesPerBatch
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

type EventBody struct {
	OrderID   string  `json:"order_id"`
	Kind      string  `json:"kind"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type BatchResult struct {
	Index    int
	Sent     int
	Failed   int
	Duration time.Duration
	Error    string
}

type model struct {
	spinner       spinner.Model
	progress      progress.Model
	totalMessages int
	sentMessages  int
	failedMsgs    int
	batchesDone   int
	latencies     []time.Duration
	recentLogs    []string
	startTime     time.Time
	isComplete    bool
	width         int
}

type tickMsg time.Time
type resultMsg BatchResult
type completeMsg struct{}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("111"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2).
			MarginBottom(1)
)

func initialModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		spinner:       s,
		progress:      progress.New(progress.WithDefaultGradient()),
		totalMessages: numberOfMessages,
		recentLogs:    make([]string, 0, 10),
		latencies:     make([]time.Duration, 0),
		startTime:     time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tickMsg:
		if !m.isComplete {
			return m, tickCmd()
		}
		return m, nil

	case resultMsg:
		m.batchesDone++
		m.sentMessages += msg.Sent
		m.failedMsgs += msg.Failed
		m.latencies = append(m.latencies, msg.Duration)

		var line string
		if msg.Error != "" {
			line = errorStyle.Render(fmt.Sprintf("✗ batch %d failed: %s", msg.Index, msg.Error))
		} else if msg.Failed > 0 {
			line = errorStyle.Render(fmt.Sprintf("✗ batch %d: %d sent, %d rejected (%v)", msg.Index, msg.Sent, msg.Failed, msg.Duration))
		} else {
			line = successStyle.Render(fmt.Sprintf("✓ batch %d: %d sent (%v)", msg.Index, msg.Sent, msg.Duration))
		}
		m.recentLogs = append([]string{line}, m.recentLogs...)
		if len(m.recentLogs) > 10 {
			m.recentLogs = m.recentLogs[:10]
		}
		return m, nil

	case completeMsg:
		m.isComplete = true
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("SQS Relay Seeder") + "\n")

	done := m.sentMessages + m.failedMsgs
	percent := float64(done) / float64(m.totalMessages)
	progressText := fmt.Sprintf("Progress: %d/%d messages (%.1f%%)", done, m.totalMessages, percent*100)
	if m.isComplete {
		progressText = "✓ " + progressText
	} else {
		progressText = m.spinner.View() + " " + progressText
	}
	b.WriteString(progressText + "\n")
	b.WriteString(m.progress.ViewAs(percent) + "\n\n")

	b.WriteString(m.renderStatsPanel() + "\n")
	b.WriteString(m.renderLogPanel() + "\n")

	if m.isComplete {
		b.WriteString(successStyle.Render("\n✓ Seeding complete! Press 'q' to quit"))
	} else {
		b.WriteString(labelStyle.Render("\nPress 'q' to quit"))
	}

	return b.String()
}

func (m model) renderStatsPanel() string {
	elapsed := time.Since(m.startTime)

	var avg time.Duration
	if len(m.latencies) > 0 {
		var total time.Duration
		for _, d := range m.latencies {
			total += d
		}
		avg = total / time.Duration(len(m.latencies))
	}

	throughput := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		throughput = float64(m.sentMessages) / secs
	}

	displayQueueURL := queueURL
	if len(displayQueueURL) > 58 {
		displayQueueURL = "..." + displayQueueURL[len(displayQueueURL)-55:]
	}

	content := fmt.Sprintf(
		"%s %s\n%s %s\n%s %s  %s %s\n%s %s  %s %s\n%s %s msg/s  %s %s",
		labelStyle.Render("Queue:"),
		valueStyle.Render(displayQueueURL),
		labelStyle.Render("Workers:"),
		valueStyle.Render(fmt.Sprintf("%d (batches of %d)", concurrency, entriesPerBatch)),
		labelStyle.Render("Sent:"),
		successStyle.Render(fmt.Sprintf("%d", m.sentMessages)),
		labelStyle.Render("Failed:"),
		errorStyle.Render(fmt.Sprintf("%d", m.failedMsgs)),
		labelStyle.Render("Batches:"),
		valueStyle.Render(fmt.Sprintf("%d", m.batchesDone)),
		labelStyle.Render("Avg batch latency:"),
		valueStyle.Render(avg.Round(time.Millisecond).String()),
		labelStyle.Render("Throughput:"),
		valueStyle.Render(fmt.Sprintf("%.1f", throughput)),
		labelStyle.Render("Elapsed:"),
		valueStyle.Render(elapsed.Round(time.Second).String()),
	)

	return boxStyle.Width(84).Render(content)
}

func (m model) renderLogPanel() string {
	var logs strings.Builder
	logs.WriteString(labelStyle.Render("Recent Batches:") + "\n\n")

	if len(m.recentLogs) == 0 {
		logs.WriteString(labelStyle.Render("  No activity yet..."))
	} else {
		for _, line := range m.recentLogs {
			logs.WriteString("  " + line + "\n")
		}
	}

	return boxStyle.Width(84).Render(logs.String())
}

func buildEntry(rng *rand.Rand, index int) types.SendMessageBatchRequestEntry {
	kinds := []string{"order", "payment", "shipment"}
	kind := kinds[rng.Intn(len(kinds))]

	priority := "normal"
	if rng.Float32() > 0.7 {
		priority = "high"
	}

	guid := xid.New()
	body, _ := json.Marshal(EventBody{
		OrderID:   fmt.Sprintf("order-%06d", 100000+rng.Intn(900000)),
		Kind:      kind,
		Amount:    float64(rng.Intn(100000)) / 100,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})

	return types.SendMessageBatchRequestEntry{
		Id:          aws.String(fmt.Sprintf("seed-%06d-%s", index, guid.String())),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind":     {DataType: aws.String("String"), StringValue: aws.String(kind)},
			"priority": {DataType: aws.String("String"), StringValue: aws.String(priority)},
			"seeder":   {DataType: aws.String("String"), StringValue: aws.String("sqs-relay")},
		},
	}
}

func sendBatch(ctx context.Context, client *sqs.Client, rng *rand.Rand, batchIndex, count int) BatchResult {
	entries := make([]types.SendMessageBatchRequestEntry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, buildEntry(rng, batchIndex*maxEntriesPerBatch+i))
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	startTime := time.Now()
	resp, err := client.SendMessageBatch(sendCtx, &sqs.SendMessageBatchInput{
		QueueUrl: aws.String(queueURL),
		Entries:  entries,
	})
	duration := time.Since(startTime)

	if err != nil {
		return BatchResult{Index: batchIndex, Failed: count, Duration: duration, Error: err.Error()}
	}

	return BatchResult{
		Index:    batchIndex,
		Sent:     count - len(resp.Failed),
		Failed:   len(resp.Failed),
		Duration: duration,
	}
}

type batchJob struct {
	index int
	count int
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Unable to load SDK config: %v\n", err)
		os.Exit(1)
	}

	client := sqs.NewFromConfig(cfg)

	p := tea.NewProgram(initialModel(), tea.WithAltScreen())

	go func() {
		jobs := make(chan batchJob, concurrency*2)
		results := make(chan BatchResult, concurrency*2)

		var wg sync.WaitGroup
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func(workerID int) {
				defer wg.Done()
				rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

				for {
					select {
					case job, ok := <-jobs:
						if !ok {
							return
						}
						results <- sendBatch(ctx, client, rng, job.index, job.count)
					case <-ctx.Done():
						return
					}
				}
			}(w)
		}

		go func() {
			remaining := numberOfMessages
			for index := 0; remaining > 0; index++ {
				count := entriesPerBatch
				if remaining < count {
					count = remaining
				}
				select {
				case jobs <- batchJob{index: index, count: count}:
					remaining -= count
				case <-ctx.Done():
					close(jobs)
					return
				}
			}
			close(jobs)
		}()

		go func() {
			wg.Wait()
			close(results)
		}()

		for result := range results {
			p.Send(resultMsg(result))
		}
		p.Send(completeMsg{})
	}()

	go func() {
		<-sigChan
		cancel()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
