package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BrowserOptions configures a headless Chrome listing session.
type BrowserOptions struct {
	Selectors ListingSelectors
	Headless  bool
	// ExecPath overrides Chrome discovery.
	ExecPath string
}

// BrowserListing drives the listing in a real browser, clicking the reveal
// control the way a visitor would.
type BrowserListing struct {
	opts BrowserOptions

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// NewBrowserListing creates an unopened browser listing.
func NewBrowserListing(opts BrowserOptions) *BrowserListing {
	opts.Selectors = opts.Selectors.withDefaults()
	return &BrowserListing{opts: opts}
}

// Open starts Chrome and navigates to url.
func (b *BrowserListing) Open(ctx context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx != nil {
		return eris.New("harvest: browser listing already open")
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	bctx, cancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		cancel()
		allocCancel()
		return eris.Wrapf(err, "harvest: open listing %s", url)
	}

	b.ctx, b.cancel, b.allocCancel = bctx, cancel, allocCancel
	zap.L().Debug("browser listing opened",
		zap.String("component", "harvest.browser"),
		zap.String("url", url),
	)
	return nil
}

const revealScript = `(function(sel) {
  const btn = document.querySelector(sel);
  if (!btn || btn.disabled || btn.offsetParent === null) return "exhausted";
  btn.scrollIntoView({block: "center"});
  const r = btn.getBoundingClientRect();
  const top = document.elementFromPoint(r.left + r.width / 2, r.top + r.height / 2);
  if (top && top !== btn && !btn.contains(top)) return "obstructed";
  btn.click();
  return "clicked";
})(%s)`

// RevealMore clicks the reveal control once.
func (b *BrowserListing) RevealMore(ctx context.Context) error {
	bctx, err := b.session()
	if err != nil {
		return err
	}

	var state string
	if err := run(ctx, bctx, chromedp.Evaluate(script(revealScript, b.opts.Selectors.RevealMore), &state)); err != nil {
		return eris.Wrap(err, "harvest: trigger reveal")
	}

	switch state {
	case "clicked":
		return nil
	case "exhausted":
		return ErrExhausted
	case "obstructed":
		return ErrObstructed
	default:
		return eris.Errorf("harvest: unexpected reveal state %q", state)
	}
}

const cardsScript = `(function(card, link, image) {
  return Array.from(document.querySelectorAll(card)).map(function(c) {
    const a = c.querySelector(link);
    const img = c.querySelector(image);
    return {
      href: a ? (a.getAttribute("href") || "") : "",
      thumbnail: img ? (img.currentSrc || img.src || "") : ""
    };
  });
})(%s, %s, %s)`

// Cards reads every card currently in the DOM.
func (b *BrowserListing) Cards(ctx context.Context) ([]Card, error) {
	bctx, err := b.session()
	if err != nil {
		return nil, err
	}

	sel := b.opts.Selectors
	var cards []Card
	if err := run(ctx, bctx, chromedp.Evaluate(script(cardsScript, sel.Card, sel.CardLink, sel.CardImage), &cards)); err != nil {
		return nil, eris.Wrap(err, "harvest: read cards")
	}
	return cards, nil
}

// Close shuts the browser down.
func (b *BrowserListing) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
		b.allocCancel()
	}
	b.ctx, b.cancel, b.allocCancel = nil, nil, nil
	return nil
}

func (b *BrowserListing) session() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return nil, eris.New("harvest: browser listing not open")
	}
	return b.ctx, nil
}

// run executes actions in the browser context unless ctx is already done.
// The browser context itself derives from the ctx passed to Open.
func run(ctx, bctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(bctx, actions...)
}

// script fills a JS template with JSON-quoted string arguments.
func script(tmpl string, args ...string) string {
	quoted := make([]any, len(args))
	for i, a := range args {
		b, _ := json.Marshal(a)
		quoted[i] = string(b)
	}
	return fmt.Sprintf(tmpl, quoted...)
}
