package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"apexwatch/internal/registry"
	kit "apexwatch/internal/transport"
	logx "apexwatch/pkg/logx"
	"apexwatch/pkg/tgui"
)

// cbPlugin is the first segment of every callback produced by this bot.
const cbPlugin = "watch"

// labelWidth is the visual width menu button labels are padded to.
const labelWidth = 14

const (
	msgChooseAction   = "请选择操作："
	msgEnterName      = "请输入玩家名："
	msgChoosePlatform = "选择平台："
	msgBadPlatformBtn = "平台无效，请重新选择："
	msgExpired        = "操作已过期，请重新开始。"
)

// cmdMenu renders the main menu as a fresh message.
func (r *Router) cmdMenu(ctx context.Context, req *Request) error {
	_, err := r.mainMenu().Send(ctx, r.adapter, req.Chat)
	return err
}

func (r *Router) dispatchCallback(ctx context.Context, req *Request) error {
	if !r.authorized(req.Username) {
		return r.adapter.AnswerCallback(ctx, req.CallbackID, msgUnauthorized)
	}

	plugin, action, payload := tgui.ParseData(req.Update.Callback.Data)
	if plugin != cbPlugin {
		return r.adapter.AnswerCallback(ctx, req.CallbackID, "")
	}
	req.Command = cbPlugin + ":" + action
	req.Payload = payload

	var err error
	switch action {
	case "menu":
		err = r.edit(ctx, req, r.mainMenu())
	case "add":
		err = r.menuBeginAdd(ctx, req)
	case "cancel":
		err = r.menuCancel(ctx, req)
	case "platform":
		err = r.menuPlatformChosen(ctx, req, payload)
	case "list":
		err = r.edit(ctx, req, r.listMenu())
	case "player":
		err = r.menuPlayer(ctx, req, payload)
	case "status":
		err = r.menuStatus(ctx, req, payload)
	case "notify":
		err = r.menuToggleNotify(ctx, req, payload)
	case "remove":
		err = r.menuRemove(ctx, req, payload)
	default:
		err = r.edit(ctx, req, r.mainMenu())
	}
	// Always acknowledge to stop the client spinner. Some actions answer with
	// their own toast first; Telegram ignores the duplicate.
	_ = r.adapter.AnswerCallback(ctx, req.CallbackID, "")
	return err
}

// edit rewrites the menu message in place; if Telegram refuses the edit
// (unchanged text, message too old) the view is sent as a new message.
func (r *Router) edit(ctx context.Context, req *Request, msg tgui.Message) error {
	ref := kit.MessageRef{ChatID: req.Chat.ChatID, MessageID: req.MessageID}
	if err := msg.Edit(ctx, r.adapter, ref); err != nil {
		r.log.Debug("menu edit failed, sending new message", logx.Err(err))
		_, err = msg.Send(ctx, r.adapter, req.Chat)
		return err
	}
	return nil
}

func menuBtn(label, action, payload string) tele.Btn {
	return tgui.Btn(tgui.PadLabel(label, labelWidth), tgui.Data(cbPlugin, action, payload))
}

// --- views ---

func (r *Router) mainMenu() tgui.Message {
	kb := tgui.NewInline().
		Row(menuBtn("➕ 添加玩家", "add", "")).
		Row(menuBtn("📋 监控列表", "list", ""))
	return tgui.New().Line(msgChooseAction).Inline(kb).Build()
}

func (r *Router) listMenu() tgui.Message {
	entries := r.reg.List()
	if len(entries) == 0 {
		kb := tgui.NewInline().Row(menuBtn("⬅️ 返回", "menu", ""))
		return tgui.New().Line(msgEmptyList).Inline(kb).Build()
	}
	kb := tgui.NewInline()
	for _, e := range entries {
		label := tgui.TruncRunes(e.Player.OriginalName, labelWidth) + " (" + e.Player.Platform + ")"
		kb.Row(menuBtn(label, "player", e.Key))
	}
	kb.Row(menuBtn("⬅️ 返回", "menu", ""))
	return tgui.New().Line("监控列表：").Inline(kb).Build()
}

func (r *Router) playerView(ctx context.Context, key string) (tgui.Message, bool) {
	p, ok := r.reg.Get(key)
	if !ok {
		return tgui.Message{}, false
	}
	flag := "关"
	toggleLabel := "🔔 开启通知"
	if p.Notify {
		flag = "开"
		toggleLabel = "🔕 关闭通知"
	}
	b := tgui.New().
		Title("", p.OriginalName).
		KV("平台", p.Platform).
		KV("通知", flag)
	if last := p.Last(); last != "" {
		b.KV("最近状态", stateDisplay(last))
	}
	if ts, err := r.hist.Recent(ctx, key, 3); err == nil && len(ts) > 0 {
		b.Line("最近变化：")
		for _, t := range ts {
			b.Line(historyLine(t))
		}
	}
	kb := tgui.NewInline().
		Row(menuBtn("🔍 查询状态", "status", key)).
		Row(menuBtn(toggleLabel, "notify", key)).
		Row(menuBtn("🗑 移除", "remove", key)).
		Row(menuBtn("⬅️ 返回列表", "list", ""))
	return b.Inline(kb).Build(), true
}

func (r *Router) platformMenu(notice string) tgui.Message {
	kb := tgui.NewInline().
		Row(menuBtn("PC", "platform", "PC"), menuBtn("X1", "platform", "X1")).
		Row(menuBtn("PS4", "platform", "PS4"), menuBtn("SWITCH", "platform", "SWITCH")).
		Row(menuBtn("✖️ 取消", "cancel", ""))
	b := tgui.New()
	if notice != "" {
		b.Line(notice)
	}
	b.Line(msgChoosePlatform)
	return b.Inline(kb).Build()
}

// --- actions ---

func (r *Router) menuBeginAdd(ctx context.Context, req *Request) error {
	if err := r.reg.BeginAdd(req.Chat.ChatID); err != nil {
		r.log.Error("pending add save failed", logx.Err(err))
	}
	kb := tgui.NewInline().Row(menuBtn("✖️ 取消", "cancel", ""))
	return r.edit(ctx, req, tgui.New().Line(msgEnterName).Inline(kb).Build())
}

func (r *Router) menuCancel(ctx context.Context, req *Request) error {
	if err := r.reg.ClearPending(req.Chat.ChatID); err != nil {
		r.log.Error("pending clear failed", logx.Err(err))
	}
	return r.edit(ctx, req, r.mainMenu())
}

// menuNameEntered handles free text while the chat awaits a player name.
func (r *Router) menuNameEntered(ctx context.Context, req *Request, name string) error {
	if err := r.reg.SetPendingName(req.Chat.ChatID, name); err != nil {
		r.log.Error("pending name save failed", logx.Err(err))
	}
	_, err := r.platformMenu("").Send(ctx, r.adapter, req.Chat)
	return err
}

func (r *Router) menuPlatformChosen(ctx context.Context, req *Request, token string) error {
	name, hasName, pending := r.reg.Pending(req.Chat.ChatID)
	if !pending || !hasName {
		// Stale button from a finished or cancelled flow.
		if err := r.edit(ctx, req, r.mainMenu()); err != nil {
			return err
		}
		return r.adapter.AnswerCallback(ctx, req.CallbackID, msgExpired)
	}
	platform, ok := normalizePlatform(token)
	if !ok {
		return r.edit(ctx, req, r.platformMenu(msgBadPlatformBtn))
	}
	if _, err := r.reg.Add(name, platform); err != nil {
		r.log.Error("add failed", logx.String("player", name), logx.Err(err))
	}
	if err := r.reg.ClearPending(req.Chat.ChatID); err != nil {
		r.log.Error("pending clear failed", logx.Err(err))
	}
	kb := tgui.NewInline().Row(menuBtn("🏠 主菜单", "menu", ""))
	text := fmt.Sprintf("已添加监控: %s (%s)", name, platform)
	return r.edit(ctx, req, tgui.New().Line(text).Inline(kb).Build())
}

func (r *Router) menuPlayer(ctx context.Context, req *Request, key string) error {
	view, ok := r.playerView(ctx, key)
	if !ok {
		return r.edit(ctx, req, r.listMenu())
	}
	return r.edit(ctx, req, view)
}

func (r *Router) menuStatus(ctx context.Context, req *Request, key string) error {
	p, ok := r.reg.Get(key)
	if !ok {
		return r.edit(ctx, req, r.listMenu())
	}
	st, err := r.fetch.Fetch(ctx, p.OriginalName, p.Platform)
	if err != nil {
		r.log.Debug("status fetch failed", logx.String("player", p.OriginalName), logx.Err(err))
		// Keep the current view; surface the failure as a toast.
		return r.adapter.AnswerCallback(ctx, req.CallbackID, msgFetchFailed)
	}
	text := fmt.Sprintf("%s 当前状态: \n🟢 %s (%s)\n已持续时间: %s",
		p.OriginalName, st.Text(), st.State, st.Duration(time.Now()))
	kb := tgui.NewInline().
		Row(menuBtn("⬅️ 返回", "player", key)).
		Row(menuBtn("🏠 主菜单", "menu", ""))
	return r.edit(ctx, req, tgui.New().Line(text).Inline(kb).Build())
}

func (r *Router) menuToggleNotify(ctx context.Context, req *Request, key string) error {
	p, ok := r.reg.Get(key)
	if !ok {
		return r.edit(ctx, req, r.listMenu())
	}
	if err := r.reg.SetNotify(key, !p.Notify); err != nil && !errors.Is(err, registry.ErrNotFound) {
		r.log.Error("notify toggle failed", logx.Err(err))
	}
	return r.menuPlayer(ctx, req, key)
}

func (r *Router) menuRemove(ctx context.Context, req *Request, key string) error {
	err := r.reg.Remove(key)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		r.log.Error("remove failed", logx.Err(err))
	}
	if err := r.adapter.AnswerCallback(ctx, req.CallbackID, msgRemoved); err != nil {
		r.log.Debug("callback answer failed", logx.Err(err))
	}
	return r.edit(ctx, req, r.listMenu())
}
