package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apexwatch/internal/history"
	"apexwatch/internal/registry"
	logx "apexwatch/pkg/logx"
)

const (
	msgUnauthorized   = "未经授权的用户。"
	msgWelcome        = "欢迎！使用 /add <玩家名> <平台> 添加监控，例如:\n/add iTzTimmy PC"
	msgUsageAdd       = "用法: /add <玩家名> <平台>"
	msgBadPlatform    = "平台必须是: PC, X1, PS4, SWITCH"
	msgUsageRemove    = "用法: /remove <玩家名>"
	msgRemoved        = "已移除该玩家。"
	msgPlayerNotFound = "未找到该玩家。"
	msgUsageNotify    = "用法: /notify <玩家名> on|off"
	msgUsageStatus    = "用法: /status <玩家名>"
	msgStatusNotFound = "未找到该玩家，请先 /add"
	msgFetchFailed    = "获取状态失败，请稍后再试。"
	msgEmptyList      = "没有监控的玩家。"
	msgUnknownCommand = "未知命令。使用 /help 查看所有命令。"
	msgUsageHistory   = "用法: /history <玩家名>"
	msgNoHistory      = "暂无历史记录。"
	msgHistoryOff     = "未启用历史记录。"
)

const helpText = "Apex 玩家监控机器人使用说明：\n\n" +
	"/start - 初始化聊天\n" +
	"/menu - 打开按钮菜单\n" +
	"/add <玩家名> <平台> - 添加监控（平台: PC/X1/PS4/SWITCH）\n" +
	"/remove <玩家名> - 移除玩家\n" +
	"/list - 当前监控列表\n" +
	"/notify <玩家名> on|off - 开关上线通知\n" +
	"/status <玩家名> - 查询当前状态\n" +
	"/history <玩家名> - 查看最近状态记录\n" +
	"/help - 显示本帮助信息\n\n" +
	"注意：玩家名区分大小写，必须为 EA ID，不是 Steam 名。支持中日文。"

// Commands returns the command list registered with Telegram's /-menu,
// in display order.
func Commands() (map[string]string, []string) {
	order := []string{"start", "menu", "add", "remove", "list", "notify", "status", "history", "help"}
	desc := map[string]string{
		"start":   "初始化聊天",
		"menu":    "打开按钮菜单",
		"add":     "添加监控",
		"remove":  "移除玩家",
		"list":    "当前监控列表",
		"notify":  "开关上线通知",
		"status":  "查询当前状态",
		"history": "查看最近状态记录",
		"help":    "显示帮助信息",
	}
	return desc, order
}

func (r *Router) dispatchMessage(ctx context.Context, req *Request) error {
	if !r.authorized(req.Username) {
		return r.reply(ctx, req, msgUnauthorized)
	}

	text := strings.TrimSpace(req.Update.Message.Text)
	if text == "" {
		return nil
	}

	// A chat awaiting a player name treats any non-command text as the name.
	// Everything else falls through to the unknown-command reply.
	if !strings.HasPrefix(text, "/") {
		if _, hasName, pending := r.reg.Pending(req.Chat.ChatID); pending && !hasName {
			return r.menuNameEntered(ctx, req, text)
		}
		return r.reply(ctx, req, msgUnknownCommand)
	}

	parts := strings.Fields(text)
	cmd := strings.ToLower(parts[0])
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	args := parts[1:]
	req.Command = cmd
	req.Args = args

	switch cmd {
	case "/start":
		return r.cmdStart(ctx, req)
	case "/help":
		return r.reply(ctx, req, helpText)
	case "/menu":
		return r.cmdMenu(ctx, req)
	case "/add":
		return r.cmdAdd(ctx, req, args)
	case "/remove":
		return r.cmdRemove(ctx, req, args)
	case "/list":
		return r.cmdList(ctx, req)
	case "/notify":
		return r.cmdNotify(ctx, req, args)
	case "/status":
		return r.cmdStatus(ctx, req, args)
	case "/history":
		return r.cmdHistory(ctx, req, args)
	default:
		return r.reply(ctx, req, msgUnknownCommand)
	}
}

func (r *Router) cmdStart(ctx context.Context, req *Request) error {
	if err := r.reg.BindChat(req.Chat.ChatID); err != nil {
		r.log.Error("chat bind failed", logx.Err(err))
	}
	r.chatBound(req.Chat.ChatID)
	return r.reply(ctx, req, msgWelcome)
}

func (r *Router) cmdAdd(ctx context.Context, req *Request, args []string) error {
	if len(args) != 2 {
		return r.reply(ctx, req, msgUsageAdd)
	}
	name := args[0]
	platform, ok := normalizePlatform(args[1])
	if !ok {
		return r.reply(ctx, req, msgBadPlatform)
	}
	if _, err := r.reg.Add(name, platform); err != nil {
		r.log.Error("add failed", logx.String("player", name), logx.Err(err))
	}
	return r.reply(ctx, req, fmt.Sprintf("已添加监控: %s (%s)", name, platform))
}

func (r *Router) cmdRemove(ctx context.Context, req *Request, args []string) error {
	if len(args) != 1 {
		return r.reply(ctx, req, msgUsageRemove)
	}
	err := r.reg.Remove(args[0])
	if errors.Is(err, registry.ErrNotFound) {
		return r.reply(ctx, req, msgPlayerNotFound)
	}
	if err != nil {
		r.log.Error("remove failed", logx.Err(err))
	}
	return r.reply(ctx, req, msgRemoved)
}

func (r *Router) cmdList(ctx context.Context, req *Request) error {
	entries := r.reg.List()
	if len(entries) == 0 {
		return r.reply(ctx, req, msgEmptyList)
	}
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, "监控列表：")
	for _, e := range entries {
		lines = append(lines, listLine(e.Player))
	}
	return r.reply(ctx, req, strings.Join(lines, "\n"))
}

func (r *Router) cmdNotify(ctx context.Context, req *Request, args []string) error {
	if len(args) != 2 {
		return r.reply(ctx, req, msgUsageNotify)
	}
	mode := strings.ToLower(args[1])
	if mode != "on" && mode != "off" {
		return r.reply(ctx, req, msgUsageNotify)
	}
	err := r.reg.SetNotify(args[0], mode == "on")
	if errors.Is(err, registry.ErrNotFound) {
		return r.reply(ctx, req, msgPlayerNotFound)
	}
	if err != nil {
		r.log.Error("notify toggle failed", logx.Err(err))
	}
	return r.reply(ctx, req, "已更新通知设置: "+mode)
}

func (r *Router) cmdStatus(ctx context.Context, req *Request, args []string) error {
	if len(args) != 1 {
		return r.reply(ctx, req, msgUsageStatus)
	}
	p, ok := r.reg.Get(args[0])
	if !ok {
		return r.reply(ctx, req, msgStatusNotFound)
	}
	st, err := r.fetch.Fetch(ctx, p.OriginalName, p.Platform)
	if err != nil {
		r.log.Debug("status fetch failed", logx.String("player", p.OriginalName), logx.Err(err))
		return r.reply(ctx, req, msgFetchFailed)
	}
	text := fmt.Sprintf("%s 当前状态: \n🟢 %s (%s)\n已持续时间: %s",
		p.OriginalName, st.Text(), st.State, st.Duration(time.Now()))
	return r.reply(ctx, req, text)
}

func (r *Router) cmdHistory(ctx context.Context, req *Request, args []string) error {
	if len(args) != 1 {
		return r.reply(ctx, req, msgUsageHistory)
	}
	key := registry.Key(args[0])
	if _, ok := r.reg.Get(key); !ok {
		return r.reply(ctx, req, msgPlayerNotFound)
	}
	rows, err := r.hist.Recent(ctx, key, 10)
	if errors.Is(err, history.ErrDisabled) {
		return r.reply(ctx, req, msgHistoryOff)
	}
	if err != nil {
		r.log.Warn("history query failed", logx.Err(err))
		return r.reply(ctx, req, msgFetchFailed)
	}
	if len(rows) == 0 {
		return r.reply(ctx, req, msgNoHistory)
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, "历史记录：")
	for _, t := range rows {
		lines = append(lines, historyLine(t))
	}
	return r.reply(ctx, req, strings.Join(lines, "\n"))
}

func listLine(p registry.Player) string {
	flag := "关"
	if p.Notify {
		flag = "开"
	}
	return fmt.Sprintf("%s (%s) - 通知: %s", p.OriginalName, p.Platform, flag)
}

func historyLine(t history.Transition) string {
	from := stateDisplay(t.FromState)
	if t.FromState == "" {
		from = "未知"
	}
	return fmt.Sprintf("%s  %s → %s",
		t.At.Local().Format("01-02 15:04"), from, stateDisplay(t.ToState))
}
