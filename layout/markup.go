package layout

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Receipt markup is a flat sequence of blocks:
//
//	<p align="center" size="18" bold gap="4" pad="8" rule="bottom">text <b>bold</b></p>
//	<space size="18"/>
//
// Text content is entity-decoded by the tokenizer, so callers must escape
// any value that could contain markup characters.

var ErrMarkup = errors.New("invalid receipt markup")

// Default block metrics in logical units.
const (
	DefaultSize       = 14.0
	DefaultLineHeight = 1.3
	DefaultRulePad    = 6.0
)

// Align is a block's horizontal alignment.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

// Run is a span of text with one weight. A run with Break set ends the line.
type Run struct {
	Text  string
	Bold  bool
	Break bool
}

// Block is one paragraph or vertical space.
type Block struct {
	Align      Align
	Size       float64
	Bold       bool
	Gap        float64
	Pad        float64
	RuleTop    bool
	RuleBottom bool
	Runs       []Run

	// Space, when non-zero, makes the block empty vertical space
	Space float64
}

// Text returns the concatenated run text
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		if r.Break {
			sb.WriteByte('\n')
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Parse reads receipt markup into blocks.
func Parse(markup string) ([]Block, error) {
	z := html.NewTokenizer(strings.NewReader(markup))

	var blocks []Block
	var cur *Block
	boldDepth := 0

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				if cur != nil {
					return nil, fmt.Errorf("%w: unclosed <p>", ErrMarkup)
				}
				return blocks, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrMarkup, z.Err())

		case html.TextToken:
			text := z.Token().Data
			if cur == nil {
				if strings.TrimSpace(text) != "" {
					return nil, fmt.Errorf("%w: text outside block: %q", ErrMarkup, text)
				}
				continue
			}
			cur.Runs = append(cur.Runs, Run{Text: text, Bold: cur.Bold || boldDepth > 0})

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "p":
				if cur != nil {
					return nil, fmt.Errorf("%w: nested <p>", ErrMarkup)
				}
				b, err := blockFromAttrs(tok.Attr)
				if err != nil {
					return nil, err
				}
				cur = &b
			case "b":
				if tt == html.StartTagToken {
					boldDepth++
				}
			case "br":
				if cur == nil {
					return nil, fmt.Errorf("%w: <br> outside block", ErrMarkup)
				}
				cur.Runs = append(cur.Runs, Run{Break: true})
			case "space":
				if cur != nil {
					return nil, fmt.Errorf("%w: <space> inside block", ErrMarkup)
				}
				size, err := floatAttr(tok.Attr, "size", DefaultSize)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, Block{Space: size})
			default:
				return nil, fmt.Errorf("%w: unknown element <%s>", ErrMarkup, tok.Data)
			}

		case html.EndTagToken:
			tok := z.Token()
			switch tok.Data {
			case "p":
				if cur == nil {
					return nil, fmt.Errorf("%w: stray </p>", ErrMarkup)
				}
				blocks = append(blocks, *cur)
				cur = nil
				boldDepth = 0
			case "b":
				if boldDepth > 0 {
					boldDepth--
				}
			case "space", "br":
			default:
				return nil, fmt.Errorf("%w: unknown element </%s>", ErrMarkup, tok.Data)
			}
		}
	}
}

func blockFromAttrs(attrs []html.Attribute) (Block, error) {
	b := Block{Size: DefaultSize, Pad: DefaultRulePad}

	for _, a := range attrs {
		var err error
		switch a.Key {
		case "align":
			switch a.Val {
			case "center":
				b.Align = AlignCenter
			case "left", "":
				b.Align = AlignLeft
			default:
				err = fmt.Errorf("%w: align=%q", ErrMarkup, a.Val)
			}
		case "bold":
			b.Bold = true
		case "size":
			b.Size, err = parseUnits(a.Key, a.Val)
		case "gap":
			b.Gap, err = parseUnits(a.Key, a.Val)
		case "pad":
			b.Pad, err = parseUnits(a.Key, a.Val)
		case "rule":
			switch a.Val {
			case "top":
				b.RuleTop = true
			case "bottom":
				b.RuleBottom = true
			default:
				err = fmt.Errorf("%w: rule=%q", ErrMarkup, a.Val)
			}
		default:
			err = fmt.Errorf("%w: unknown attribute %q", ErrMarkup, a.Key)
		}
		if err != nil {
			return Block{}, err
		}
	}

	return b, nil
}

func floatAttr(attrs []html.Attribute, key string, def float64) (float64, error) {
	for _, a := range attrs {
		if a.Key == key {
			return parseUnits(key, a.Val)
		}
	}
	return def, nil
}

func parseUnits(key, val string) (float64, error) {
	v, err := strconv.ParseFloat(val, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrMarkup, key, val)
	}
	return v, nil
}
