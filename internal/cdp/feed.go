// Package cdp turns a live Chromium's DevTools Protocol events into the
// tab lifecycle feed: change events on navigation, title mutation and
// load completion, plus removal notices when tabs close.
package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/tabsense/tabsense/internal/config"
	"github.com/tabsense/tabsense/internal/types"
)

// EventSink consumes the lifecycle feed. Satisfied by the tracker.
type EventSink interface {
	HandleEvent(ev types.TabChangeEvent)
	HandleRemoved(tabID string)
}

// Feed manages CDP connections to browser tabs and translates their
// events into TabChangeEvents.
type Feed struct {
	cfg  *config.Config
	sink EventSink

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	tabs   map[target.ID]*tabContext
	tabsMu sync.RWMutex
	done   chan struct{}
}

type tabContext struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
}

func NewFeed(cfg *config.Config, sink EventSink) *Feed {
	return &Feed{
		cfg:  cfg,
		sink: sink,
		tabs: make(map[target.ID]*tabContext),
		done: make(chan struct{}),
	}
}

// Connect attaches to the browser, hooks every matching tab and starts
// watching for tabs opening and closing.
func (f *Feed) Connect(ctx context.Context) error {
	_ = ctx
	cdpURL := f.cfg.CDPURL()
	slog.Info("connecting to browser", "url", cdpURL)

	f.allocCtx, f.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	f.browserCtx, f.browserStop = chromedp.NewContext(f.allocCtx)

	if err := chromedp.Run(f.browserCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	if err := f.syncTabs(); err != nil {
		return err
	}

	go f.watch()
	return nil
}

// syncTabs reconciles attached tabs against the browser's current
// targets: attach new pages, tear down closed ones.
func (f *Feed) syncTabs() error {
	targets, err := chromedp.Targets(f.browserCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	live := make(map[target.ID]bool, len(targets))
	for _, t := range targets {
		if t.Type != "page" || !f.matchesTabURL(t.URL) {
			continue
		}
		live[t.TargetID] = true

		f.tabsMu.RLock()
		_, attached := f.tabs[t.TargetID]
		f.tabsMu.RUnlock()
		if attached {
			continue
		}
		if err := f.attach(t.TargetID, t.URL, t.Title); err != nil {
			slog.Error("failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
		}
	}

	f.tabsMu.Lock()
	var closed []*tabContext
	for id, tab := range f.tabs {
		if !live[id] {
			closed = append(closed, tab)
			delete(f.tabs, id)
		}
	}
	f.tabsMu.Unlock()

	for _, tab := range closed {
		tab.cancel()
		f.sink.HandleRemoved(string(tab.id))
	}

	return nil
}

func (f *Feed) attach(targetID target.ID, url, title string) error {
	tabCtx, tabCancel := chromedp.NewContext(f.allocCtx, chromedp.WithTargetID(targetID))
	tab := &tabContext{id: targetID, ctx: tabCtx, cancel: tabCancel}

	f.tabsMu.Lock()
	f.tabs[targetID] = tab
	f.tabsMu.Unlock()

	if err := chromedp.Run(tabCtx, page.Enable()); err != nil {
		tabCancel()
		f.tabsMu.Lock()
		delete(f.tabs, targetID)
		f.tabsMu.Unlock()
		return fmt.Errorf("failed to enable page domain: %w", err)
	}

	chromedp.ListenTarget(tabCtx, f.tabEventHandler(tab))
	slog.Info("attached to tab", "target_id", targetID, "url", truncateURL(url))

	// Bootstrap observation so the tab is tracked before its next change.
	f.sink.HandleEvent(types.TabChangeEvent{
		TabID:      string(targetID),
		NewTitle:   title,
		NewURL:     url,
		ObservedAt: time.Now(),
	})

	return nil
}

func (f *Feed) tabEventHandler(tab *tabContext) func(ev interface{}) {
	tabID := string(tab.id)
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				f.sink.HandleEvent(types.TabChangeEvent{
					TabID:      tabID,
					NewURL:     e.Frame.URL,
					Phase:      types.PhaseLoading,
					ObservedAt: time.Now(),
				})
			}
		case *page.EventNavigatedWithinDocument:
			f.sink.HandleEvent(types.TabChangeEvent{
				TabID:      tabID,
				NewURL:     e.URL,
				ObservedAt: time.Now(),
			})
		case *page.EventLoadEventFired:
			// The load event carries no title; read it off the page.
			go f.emitLoadComplete(tab)
		case *target.EventTargetInfoChanged:
			if e.TargetInfo.TargetID == tab.id {
				f.sink.HandleEvent(types.TabChangeEvent{
					TabID:      tabID,
					NewTitle:   e.TargetInfo.Title,
					NewURL:     e.TargetInfo.URL,
					ObservedAt: time.Now(),
				})
			}
		}
	}
}

func (f *Feed) emitLoadComplete(tab *tabContext) {
	titleCtx, cancel := context.WithTimeout(tab.ctx, 5*time.Second)
	defer cancel()

	var title string
	if err := chromedp.Run(titleCtx, chromedp.Title(&title)); err != nil {
		slog.Debug("failed to read title after load", "target_id", tab.id, "error", err)
	}

	f.sink.HandleEvent(types.TabChangeEvent{
		TabID:      string(tab.id),
		NewTitle:   title,
		Phase:      types.PhaseComplete,
		ObservedAt: time.Now(),
	})
}

// watch polls the target list so tabs opened or closed after Connect are
// picked up.
func (f *Feed) watch() {
	interval := time.Duration(f.cfg.TabPollMS) * time.Millisecond
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			if err := f.syncTabs(); err != nil {
				slog.Warn("tab sync failed", "error", err)
			}
		}
	}
}

func (f *Feed) Close() error {
	close(f.done)

	f.tabsMu.Lock()
	for id, tab := range f.tabs {
		tab.cancel()
		delete(f.tabs, id)
	}
	f.tabsMu.Unlock()

	if f.browserStop != nil {
		f.browserStop()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}

	slog.Info("cdp feed closed")
	return nil
}

func (f *Feed) TabCount() int {
	f.tabsMu.RLock()
	defer f.tabsMu.RUnlock()
	return len(f.tabs)
}

func (f *Feed) matchesTabURL(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	if f.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(f.cfg.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
