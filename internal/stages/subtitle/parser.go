package subtitle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/speechflow/speechflow/internal/chunk"
	"github.com/speechflow/speechflow/internal/cstream"
	"github.com/speechflow/speechflow/internal/stage"
)

// ParserSchema is the parameter schema the parser stage declares.
var ParserSchema = stage.Schema{}

var (
	sequenceLine = regexp.MustCompile(`^\d+$`)
	timingLine   = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)
	inlineTag    = regexp.MustCompile(`<[^>]*>`)
)

// Parser accumulates SRT/VTT source text and emits one text Chunk per cue.
type Parser struct {
	stage.Base

	stream *cstream.Stream
}

// NewParser constructs the parser stage's Stage value.
func NewParser(id string) *Parser {
	return &Parser{Base: stage.NewBase(id, "t2t-subtitle-parse", stage.IOText, stage.IOText, ParserSchema)}
}

// Open implements stage.Stage.
func (p *Parser) Open(ctx context.Context, env stage.Env) error {
	p.SetParams(env.Params)
	p.stream = cstream.NewTransform()
	p.SetStream(p.stream)
	go p.run(ctx)
	return nil
}

func (p *Parser) run(ctx context.Context) {
	defer p.stream.CloseRead()

	var buf string
	for {
		c, ok := p.stream.Drain(ctx)
		if !ok {
			break
		}
		buf += c.Text()
		var err error
		buf, err = p.drain(ctx, buf)
		if err != nil {
			p.stream.Fault(err)
			return
		}
	}
	// End of input: whatever remains is the final cue, if any.
	if strings.TrimSpace(buf) != "" {
		if err := p.emitBlock(ctx, buf); err != nil {
			p.stream.Fault(err)
		}
	}
}

// drain emits every complete (blank-line-terminated) cue block found in
// buf, returning whatever trailing partial block remains.
func (p *Parser) drain(ctx context.Context, buf string) (string, error) {
	normalized := strings.ReplaceAll(buf, "\r\n", "\n")
	for {
		idx := strings.Index(normalized, "\n\n")
		if idx < 0 {
			return normalized, nil
		}
		block := normalized[:idx]
		normalized = normalized[idx+2:]
		if err := p.emitBlock(ctx, block); err != nil {
			return normalized, err
		}
	}
}

// emitBlock parses one cue block ("[seq\n]HH:MM:SS,mmm --> HH:MM:SS,mmm\ntext...")
// and emits the resulting text Chunk, or silently drops it (spec §4.6: "drop
// empty cues") if it is unparseable or carries no text after tag-stripping.
func (p *Parser) emitBlock(ctx context.Context, block string) error {
	block = strings.Trim(block, "\n")
	if block == "" {
		return nil
	}
	lines := strings.Split(block, "\n")

	i := 0
	if i < len(lines) && sequenceLine.MatchString(strings.TrimSpace(lines[i])) {
		i++
	}
	if i >= len(lines) {
		return nil
	}

	m := timingLine.FindStringSubmatch(lines[i])
	if m == nil {
		return nil
	}
	start, err := parseTimestamp(m[1:5])
	if err != nil {
		return nil
	}
	end, err := parseTimestamp(m[5:9])
	if err != nil {
		return nil
	}
	i++

	text := inlineTag.ReplaceAllString(strings.Join(lines[i:], "\n"), "")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	return p.stream.Emit(ctx, chunk.NewText(start, end, chunk.KindFinal, text))
}

// parseTimestamp converts a [hh,mm,ss,mmm] submatch group into a Duration,
// rejecting minute/second values greater than 59 (spec §4.6).
func parseTimestamp(fields []string) (time.Duration, error) {
	hh, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, err
	}
	ss, err := strconv.Atoi(fields[2])
	if err != nil {
		return 0, err
	}
	ms, err := strconv.Atoi(fields[3])
	if err != nil {
		return 0, err
	}
	if mm > 59 || ss > 59 {
		return 0, fmt.Errorf("subtitle: minute/second out of range: %02d:%02d", mm, ss)
	}
	total := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second + time.Duration(ms)*time.Millisecond
	return total, nil
}

// Close implements stage.Stage.
func (p *Parser) Close(ctx context.Context) error {
	if p.stream != nil {
		p.stream.CloseRead()
	}
	return nil
}
