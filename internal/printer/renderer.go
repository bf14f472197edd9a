package printer

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"
)

// NoticeWindowBlocked is shown when the print target cannot be opened.
const NoticeWindowBlocked = "Bitte erlauben Sie Pop-up-Fenster, um drucken zu können."

var ErrWindowBlocked = errors.New("printer: print target could not be opened")

// Opener opens the target a print page is written to. Close finishes the
// delivery (flushing a file, rendering a PDF).
type Opener interface {
	Open(ctx context.Context, title string) (io.WriteCloser, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, title string) (io.WriteCloser, error)

func (f OpenerFunc) Open(ctx context.Context, title string) (io.WriteCloser, error) {
	return f(ctx, title)
}

// Renderer writes print pages through an Opener.
type Renderer struct {
	opener Opener
	page   PageOptions
	log    *zap.Logger
}

type Option func(*Renderer)

func WithPageOptions(o PageOptions) Option { return func(r *Renderer) { r.page = o } }

func WithLogger(l *zap.Logger) Option { return func(r *Renderer) { r.log = l } }

func New(o Opener, opts ...Option) *Renderer {
	r := &Renderer{opener: o, page: DefaultPageOptions(), log: zap.NewNop()}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Print opens the target and writes the page for body into it. A target that
// cannot be opened yields ErrWindowBlocked and nothing is written.
func (r *Renderer) Print(ctx context.Context, title string, body template.HTML) error {
	if title == "" {
		title = DefaultTitle
	}
	if r.opener == nil {
		return ErrWindowBlocked
	}
	w, err := r.opener.Open(ctx, title)
	if err != nil {
		r.log.Warn("print target blocked", zap.String("title", title), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrWindowBlocked, err)
	}
	if err := Page(w, title, body, r.page); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish print: %w", err)
	}
	r.log.Debug("print page delivered", zap.String("title", title))
	return nil
}
