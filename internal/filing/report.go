package filing

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/auditfront/triagesync/internal/components"
	"github.com/auditfront/triagesync/internal/findings"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxLinkLength bounds any outbound link-based submission.
	MaxLinkLength = 1999
	// longLinkThreshold is the length above which a built link is worth a warning.
	longLinkThreshold = 1500
)

var (
	// ErrNoFileLinkTemplate indicates that no tracker filing link is configured.
	ErrNoFileLinkTemplate = errors.New("filing: file link template not configured")
	// ErrNoViewLinkTemplate indicates that no tracker view link is configured.
	ErrNoViewLinkTemplate = errors.New("filing: view link template not configured")
)

// Message is an out-of-band supplemental text blob, published when report
// content cannot be squeezed into the filing link.
type Message struct {
	ID    string
	Title string
	Body  string
}

// MessageSink receives supplemental messages for display outside the filing
// link, e.g. a notification pane.
type MessageSink interface {
	Publish(message Message)
}

// BuilderConfig wires the report builder's collaborators.
type BuilderConfig struct {
	// FileLinkTemplate formats a filing URL from component, summary and report
	// (three %s verbs).
	FileLinkTemplate string
	// ViewLinkTemplate formats a view URL from the tracker identifier (one %s verb).
	ViewLinkTemplate string
	// ExplanationDocsTemplate formats a pattern-documentation URL from the
	// pattern name (one %s verb). Optional.
	ExplanationDocsTemplate string
	// BugNote is an optional paragraph injected into every report header.
	BugNote string
	// SourceRoot resolves finding source paths for excerpts. Optional.
	SourceRoot string
	Components *components.Table
	Sink       MessageSink
	Logger     *zap.Logger
}

// Builder renders filing reports and constructs bounded-length tracker links.
type Builder struct {
	cfg    BuilderConfig
	logger *zap.Logger
}

// NewBuilder constructs a report builder.
func NewBuilder(cfg BuilderConfig) *Builder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Head renders the report header: banner, finding message, location, and the
// configured note.
func (b *Builder) Head(finding findings.Finding) string {
	var out strings.Builder
	out.WriteString("Issue report generated from triagesync\n")
	out.WriteString(finding.Message)
	out.WriteString("\n\n")
	out.WriteString(finding.Subject)
	out.WriteString("\n")
	if finding.SourceFile != "" {
		fmt.Fprintf(&out, "  %s:%d-%d\n", finding.SourceFile, finding.StartLine, finding.EndLine)
	}
	if b.cfg.BugNote != "" {
		out.WriteString("\n")
		out.WriteString(b.cfg.BugNote)
		out.WriteString("\n")
	}
	if component := b.cfg.Components.Lookup(finding.Subject); component != "" {
		fmt.Fprintf(&out, "\nPossibly part of: %s\n", component)
	}
	return out.String()
}

func (b *Builder) excerpt(finding findings.Finding) string {
	if finding.SourceFile == "" {
		return ""
	}
	path := finding.SourceFile
	if b.cfg.SourceRoot != "" {
		path = filepath.Join(b.cfg.SourceRoot, finding.SourceFile)
	}
	return findings.LoadExcerpt(path, finding.StartLine, finding.EndLine)
}

func (b *Builder) explanation(finding findings.Finding) string {
	return "Pattern explanation:\n" + finding.Details + "\n\n"
}

func (b *Builder) explanationLink(finding findings.Finding) string {
	if b.cfg.ExplanationDocsTemplate == "" {
		return "Pattern: " + finding.Pattern + "\n"
	}
	return "Pattern explanation: " + fmt.Sprintf(b.cfg.ExplanationDocsTemplate, finding.Pattern) + "\n"
}

func (b *Builder) tail(finding findings.Finding) string {
	return "\nTriage identifier (do not modify or remove): " + finding.Hash.String() + "\n"
}

// Report renders the full filing report: header, source excerpt, pattern
// explanation, footer.
func (b *Builder) Report(finding findings.Finding) string {
	return b.Head(finding) + b.excerpt(finding) + b.explanation(finding) + b.tail(finding)
}

func (b *Builder) reportShorter(finding findings.Finding) string {
	return b.Head(finding) + b.excerpt(finding) + b.explanationLink(finding) + b.tail(finding)
}

func (b *Builder) reportAbridged(finding findings.Finding) string {
	return b.Head(finding) + b.explanationLink(finding) + b.tail(finding)
}

// FileLink builds the tracker filing URL for the finding. When the encoded
// payload exceeds MaxLinkLength the report detail is degraded level by level
// (full text, explanation link only, excerpt omitted); content that never fits
// is published to the message sink as an out-of-band supplement and the link
// carries the minimal payload.
func (b *Builder) FileLink(finding findings.Finding) (*url.URL, error) {
	if b.cfg.FileLinkTemplate == "" {
		return nil, ErrNoFileLinkTemplate
	}

	component := b.cfg.Components.Lookup(finding.Subject)
	summary := finding.Message + " in " + filepath.Base(finding.SourceFile)

	link := b.formatFileLink(component, summary, b.Report(finding))
	if len(link) > MaxLinkLength {
		link = b.formatFileLink(component, summary, b.reportShorter(finding))
	}
	if len(link) > MaxLinkLength {
		link = b.formatFileLink(component, summary, b.reportAbridged(finding))
		if len(link) > MaxLinkLength || b.excerpt(finding) != "" {
			b.publishSupplement(finding)
		}
	}
	if len(link) > longLinkThreshold {
		b.logger.Warn("filing link is long",
			zap.Int("length", len(link)),
			zap.String("hash", finding.Hash.String()))
	}
	return url.Parse(link)
}

func (b *Builder) formatFileLink(component, summary, report string) string {
	return fmt.Sprintf(b.cfg.FileLinkTemplate, component, url.QueryEscape(summary), url.QueryEscape(report))
}

func (b *Builder) publishSupplement(finding findings.Finding) {
	if b.cfg.Sink == nil {
		return
	}
	body := "[This information did not fit into the link used to prepopulate the issue entry;\n" +
		"please paste it into the issue report as appropriate.]\n\n" +
		b.excerpt(finding) + b.explanation(finding)
	b.cfg.Sink.Publish(Message{
		ID:    uuid.NewString(),
		Title: "Additional information for " + finding.Message,
		Body:  body,
	})
}

// ViewLink builds the tracker view URL for a durably filed finding.
func (b *Builder) ViewLink(filingKey string) (*url.URL, error) {
	if b.cfg.ViewLinkTemplate == "" {
		return nil, ErrNoViewLinkTemplate
	}
	return url.Parse(fmt.Sprintf(b.cfg.ViewLinkTemplate, filingKey))
}
