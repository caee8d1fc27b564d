package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/prolink-dev/prolink/internal/client/api"
	"github.com/prolink-dev/prolink/internal/client/auth"
	"github.com/prolink-dev/prolink/internal/client/config"
	"github.com/prolink-dev/prolink/internal/client/convo"
	"github.com/prolink-dev/prolink/internal/client/logx"
	"github.com/prolink-dev/prolink/internal/client/notify"
	"github.com/prolink-dev/prolink/internal/client/session"
	"github.com/prolink-dev/prolink/internal/client/transport"
)

// --- Styles ---

var (
	primaryColor   = lipgloss.Color("#0A66C2")
	secondaryColor = lipgloss.Color("#10B981")
	mutedColor     = lipgloss.Color("#9CA3AF")
	errorColor     = lipgloss.Color("#EF4444")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	ownMessageStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	otherMessageStyle = lipgloss.NewStyle().
				Foreground(primaryColor)

	pendingStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Strikethrough(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// --- View State ---

type viewState int

const (
	viewAuth viewState = iota
	viewConversations
	viewChat
	viewNotifications
)

// --- Messages ---

type transportEventMsg transport.Event

type loginResultMsg struct {
	sess *session.Session
	err  error
}

type conversationsMsg struct {
	list []convo.Conversation
	err  error
}

type messagesLoadedMsg struct {
	err error
}

type sentMsg struct {
	err error
}

type opFailedMsg struct {
	err error
}

type tickMsg time.Time

// --- Main Model ---

type model struct {
	cfg    config.Config
	logger zerolog.Logger

	apiClient *api.Client
	authMgr   *auth.Manager
	sock      *transport.Session
	notes     *notify.Store
	refresher *notify.Refresher
	convos    *convo.Store
	sender    *convo.Sender

	events chan transport.Event
	sess   *session.Session
	online map[string]bool

	// Auth
	emailInput    textinput.Model
	passwordInput textinput.Model
	authFocused   int // 0=email, 1=password
	authError     string

	// Conversations
	selectedConv    int
	currentConvID   string
	currentConvName string

	// Chat
	messageInput textinput.Model
	chatViewport viewport.Model

	// Notifications
	selectedNote int

	// UI
	view   viewState
	width  int
	height int
	err    error
}

func initialModel(cfg config.Config, logger zerolog.Logger) model {
	emailInput := textinput.New()
	emailInput.Placeholder = "Email"
	emailInput.Focus()
	emailInput.CharLimit = 64
	emailInput.Width = 30

	passwordInput := textinput.New()
	passwordInput.Placeholder = "Password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.CharLimit = 64
	passwordInput.Width = 30

	messageInput := textinput.New()
	messageInput.Placeholder = "Type a message..."
	messageInput.CharLimit = 1000
	messageInput.Width = 50

	chatViewport := viewport.New(80, 20)

	apiClient := api.NewClient(cfg.APIURL, cfg.RequestTimeout, logger)
	authMgr := auth.NewManager(apiClient, cfg.Profile, cfg.APIURL, logger)
	sock := transport.NewSession(cfg.SocketURL, nil, cfg.ReconnectMin, cfg.ReconnectMax, logger)
	notes := notify.NewStore(logger)
	refresher := notify.NewRefresher(notes, apiClient.FetchNotifications, cfg.PollInterval, logger)
	convos := convo.NewStore(logger)
	sender := convo.NewSender(convos, apiClient.SendMessage, logger)

	m := model{
		cfg:           cfg,
		logger:        logger,
		apiClient:     apiClient,
		authMgr:       authMgr,
		sock:          sock,
		notes:         notes,
		refresher:     refresher,
		convos:        convos,
		sender:        sender,
		events:        make(chan transport.Event, 64),
		online:        make(map[string]bool),
		emailInput:    emailInput,
		passwordInput: passwordInput,
		messageInput:  messageInput,
		chatViewport:  chatViewport,
		view:          viewAuth,
	}
	m.subscribeTransport()

	if sess := authMgr.Restore(); sess != nil {
		m.sess = sess
		m.view = viewConversations
		sock.Connect(sess.UserID)
		refresher.Start(context.Background())
	}
	return m
}

// subscribeTransport funnels every event the client cares about into one
// channel the bubbletea loop drains.
func (m *model) subscribeTransport() {
	names := []string{
		transport.EventConnected,
		transport.EventDisconnected,
		transport.EventNewMessage,
		transport.EventMessageRead,
		transport.EventNewNotification,
		transport.EventNotificationRead,
		transport.EventAllNotificationsRead,
		transport.EventNotificationDeleted,
		transport.EventTyping,
		transport.EventUserOnline,
		transport.EventUserOffline,
	}
	for _, name := range names {
		m.sock.On(name, func(ev transport.Event) {
			select {
			case m.events <- ev:
			default:
			}
		})
	}
}

// --- Commands ---

func waitForEvent(events chan transport.Event) tea.Cmd {
	return func() tea.Msg {
		return transportEventMsg(<-events)
	}
}

func tick() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		sess, err := m.authMgr.Login(context.Background(), email, password)
		return loginResultMsg{sess: sess, err: err}
	}
}

func (m model) fetchConversationsCmd() tea.Cmd {
	return func() tea.Msg {
		list, err := m.apiClient.FetchConversations(context.Background())
		return conversationsMsg{list: list, err: err}
	}
}

// selectConversationCmd fetches the chosen conversation's log. The epoch
// taken at selection time makes a late response for an old selection a
// no-op.
func (m model) selectConversationCmd(id string) tea.Cmd {
	epoch := m.convos.Select(id)
	return func() tea.Msg {
		msgs, err := m.apiClient.FetchMessages(context.Background(), id)
		if err != nil {
			return messagesLoadedMsg{err: err}
		}
		m.convos.ApplyMessages(epoch, msgs)
		return messagesLoadedMsg{}
	}
}

func (m model) sendMessageCmd(conversationID, content string) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := m.sender.Send(context.Background(), conversationID, sess.UserID, sess.Name, content)
		return sentMsg{err: err}
	}
}

func (m model) markNoteReadCmd(id string) tea.Cmd {
	m.notes.MarkRead(id)
	return func() tea.Msg {
		if err := m.apiClient.MarkNotificationRead(context.Background(), id); err != nil {
			return opFailedMsg{err: err}
		}
		return nil
	}
}

func (m model) markAllNotesReadCmd() tea.Cmd {
	m.notes.MarkAllRead()
	return func() tea.Msg {
		if err := m.apiClient.MarkAllNotificationsRead(context.Background()); err != nil {
			return opFailedMsg{err: err}
		}
		return nil
	}
}

func (m model) deleteNoteCmd(id string) tea.Cmd {
	m.notes.Delete(id)
	return func() tea.Msg {
		if err := m.apiClient.DeleteNotification(context.Background(), id); err != nil {
			return opFailedMsg{err: err}
		}
		return nil
	}
}

// --- Init ---

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForEvent(m.events), tick()}
	if m.sess != nil {
		cmds = append(cmds, m.fetchConversationsCmd())
	}
	return tea.Batch(cmds...)
}

// --- Update ---

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chatViewport.Width = msg.Width - 4
		m.chatViewport.Height = msg.Height - 8

	case loginResultMsg:
		if msg.err != nil {
			m.authError = msg.err.Error()
			return m, nil
		}
		m.sess = msg.sess
		m.authError = ""
		m.view = viewConversations
		m.sock.Connect(msg.sess.UserID)
		m.refresher.Start(context.Background())
		return m, m.fetchConversationsCmd()

	case conversationsMsg:
		if msg.err != nil {
			// Keep whatever list is already displayed.
			m.logger.Warn().Err(msg.err).Msg("conversation fetch failed")
			return m, nil
		}
		m.convos.SetConversations(msg.list)

	case messagesLoadedMsg:
		if msg.err == nil {
			m.updateChatViewport()
		}

	case sentMsg:
		m.updateChatViewport()

	case opFailedMsg:
		m.notes.SetErr(msg.err)

	case tickMsg:
		cmds = append(cmds, tick())

	case transportEventMsg:
		if cmd := m.handleTransportEvent(transport.Event(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}
		cmds = append(cmds, waitForEvent(m.events))
	}

	// Update text inputs
	switch m.view {
	case viewAuth:
		if m.authFocused == 0 {
			m.emailInput, _ = m.emailInput.Update(msg)
		} else {
			m.passwordInput, _ = m.passwordInput.Update(msg)
		}
	case viewChat:
		m.messageInput, _ = m.messageInput.Update(msg)
		m.chatViewport, _ = m.chatViewport.Update(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.teardown()
		return m, tea.Quit, true

	case "q":
		if m.view == viewAuth || m.view == viewConversations {
			m.teardown()
			return m, tea.Quit, true
		}

	case "tab":
		if m.view == viewAuth {
			if m.authFocused == 0 {
				m.authFocused = 1
				m.emailInput.Blur()
				m.passwordInput.Focus()
			} else {
				m.authFocused = 0
				m.passwordInput.Blur()
				m.emailInput.Focus()
			}
			return m, nil, true
		}

	case "enter":
		switch m.view {
		case viewAuth:
			if m.emailInput.Value() != "" && m.passwordInput.Value() != "" {
				return m, m.loginCmd(m.emailInput.Value(), m.passwordInput.Value()), true
			}

		case viewConversations:
			conversations := m.convos.Conversations()
			if len(conversations) > 0 && m.selectedConv < len(conversations) {
				conv := conversations[m.selectedConv]
				m.currentConvID = conv.ID
				m.currentConvName = conversationTitle(conv, m.sess)
				m.view = viewChat
				m.messageInput.Focus()
				return m, m.selectConversationCmd(conv.ID), true
			}

		case viewChat:
			if m.messageInput.Value() != "" {
				content := m.messageInput.Value()
				m.messageInput.SetValue("")
				cmd := m.sendMessageCmd(m.currentConvID, content)
				m.updateChatViewport()
				return m, cmd, true
			}

		case viewNotifications:
			notes := m.notes.All()
			if len(notes) > 0 && m.selectedNote < len(notes) {
				return m, m.markNoteReadCmd(notes[m.selectedNote].ID), true
			}
		}

	case "up", "k":
		if m.view == viewConversations && m.selectedConv > 0 {
			m.selectedConv--
		}
		if m.view == viewNotifications && m.selectedNote > 0 {
			m.selectedNote--
		}

	case "down", "j":
		if m.view == viewConversations && m.selectedConv < len(m.convos.Conversations())-1 {
			m.selectedConv++
		}
		if m.view == viewNotifications && m.selectedNote < len(m.notes.All())-1 {
			m.selectedNote++
		}

	case "n":
		if m.view == viewConversations {
			m.view = viewNotifications
			m.selectedNote = 0
			return m, nil, true
		}

	case "a":
		if m.view == viewNotifications {
			return m, m.markAllNotesReadCmd(), true
		}

	case "d":
		if m.view == viewNotifications {
			notes := m.notes.All()
			if len(notes) > 0 && m.selectedNote < len(notes) {
				id := notes[m.selectedNote].ID
				if m.selectedNote == len(notes)-1 && m.selectedNote > 0 {
					m.selectedNote--
				}
				return m, m.deleteNoteCmd(id), true
			}
		}

	case "ctrl+l":
		if m.view != viewAuth {
			m.logout()
			return m, nil, true
		}

	case "esc":
		if m.view == viewChat {
			m.convos.Deselect()
			m.currentConvID = ""
			m.view = viewConversations
			return m, nil, true
		}
		if m.view == viewNotifications {
			m.view = viewConversations
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m *model) handleTransportEvent(ev transport.Event) tea.Cmd {
	switch ev.Name {
	case transport.EventConnected:
		// Resync after every (re)connect: pushes may have been missed.
		go m.refresher.RefreshOnce(context.Background())
		return m.fetchConversationsCmd()

	case transport.EventDisconnected:
		m.convos.ClearTransient()
		m.online = make(map[string]bool)

	case transport.EventNewMessage:
		var msg convo.Message
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return nil
		}
		m.convos.ApplyIncoming(msg)
		if m.view == viewChat && msg.ConversationID == m.currentConvID {
			m.updateChatViewport()
		}

	case transport.EventMessageRead:
		var payload struct {
			ConversationID string   `json:"conversation_id"`
			MessageIDs     []string `json:"message_ids"`
			ReaderID       string   `json:"reader_id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		m.convos.ApplyRead(payload.ConversationID, payload.MessageIDs, payload.ReaderID)

	case transport.EventNewNotification:
		var n notify.Notification
		if err := json.Unmarshal(ev.Payload, &n); err != nil {
			return nil
		}
		m.notes.ApplyNew(n)

	case transport.EventNotificationRead:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		m.notes.MarkRead(payload.ID)

	case transport.EventAllNotificationsRead:
		m.notes.MarkAllRead()

	case transport.EventNotificationDeleted:
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		m.notes.Delete(payload.ID)

	case transport.EventTyping:
		var payload struct {
			ConversationID string `json:"conversation_id"`
			UserID         string `json:"user_id"`
			Name           string `json:"name"`
			Typing         bool   `json:"typing"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		m.convos.SetTyping(payload.ConversationID, payload.UserID, payload.Name, payload.Typing)

	case transport.EventUserOnline:
		var payload struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		m.online[payload.UserID] = true

	case transport.EventUserOffline:
		var payload struct {
			UserID string `json:"user_id"`
		}
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return nil
		}
		delete(m.online, payload.UserID)
	}
	return nil
}

func (m *model) logout() {
	m.refresher.Stop()
	m.sock.Disconnect()
	m.authMgr.Logout(context.Background())
	m.sess = nil
	m.convos.SetConversations(nil)
	m.convos.Deselect()
	m.notes.ApplySnapshot(nil)
	m.online = make(map[string]bool)
	m.currentConvID = ""
	m.view = viewAuth
	m.emailInput.Focus()
}

func (m *model) teardown() {
	m.sock.Disconnect()
}

func (m *model) updateChatViewport() {
	var content strings.Builder
	for _, msg := range m.convos.Messages() {
		timestamp := msg.CreatedAt.Format("15:04")
		var style lipgloss.Style
		switch {
		case msg.Failed:
			style = failedStyle
		case msg.Pending:
			style = pendingStyle
		case m.sess != nil && msg.SenderID == m.sess.UserID:
			style = ownMessageStyle
		default:
			style = otherMessageStyle
		}
		suffix := ""
		if msg.Failed {
			suffix = " (failed)"
		} else if msg.Pending {
			suffix = " (sending...)"
		}
		line := fmt.Sprintf("%s %s: %s%s",
			mutedStyle.Render(timestamp),
			style.Render(msg.SenderName),
			msg.Content,
			suffix,
		)
		content.WriteString(line + "\n")
	}
	m.chatViewport.SetContent(content.String())
	m.chatViewport.GotoBottom()
}

// --- View ---

func (m model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	switch m.view {
	case viewAuth:
		return m.authView()
	case viewConversations:
		return m.conversationsView()
	case viewChat:
		return m.chatView()
	case viewNotifications:
		return m.notificationsView()
	}
	return ""
}

func (m model) authView() string {
	var s strings.Builder

	s.WriteString("\n\n")
	s.WriteString(titleStyle.Render("PROLINK"))
	s.WriteString("\n\n")

	s.WriteString("  Email:\n")
	s.WriteString("  " + m.emailInput.View() + "\n\n")
	s.WriteString("  Password:\n")
	s.WriteString("  " + m.passwordInput.View() + "\n\n")

	if m.authError != "" {
		s.WriteString(errorStyle.Render("  " + m.authError + "\n\n"))
	}

	s.WriteString(helpStyle.Render("  Tab to switch fields • Enter to sign in • q to quit\n"))
	return s.String()
}

func (m model) conversationsView() string {
	var s strings.Builder

	name := ""
	if m.sess != nil {
		name = m.sess.Name
	}
	header := fmt.Sprintf("PROLINK - %s", name)
	if unread := m.notes.Unread(); unread > 0 {
		header += fmt.Sprintf("  [%d unread]", unread)
	}
	s.WriteString(titleStyle.Render(header))
	s.WriteString("\n\n")

	conversations := m.convos.Conversations()
	if len(conversations) == 0 {
		s.WriteString(mutedStyle.Render("  No conversations yet.\n"))
	} else {
		for i, conv := range conversations {
			prefix := "  "
			style := lipgloss.NewStyle()
			if i == m.selectedConv {
				prefix = "→ "
				style = selectedStyle
			}

			title := conversationTitle(conv, m.sess)
			badge := ""
			if conv.Unread > 0 {
				badge = fmt.Sprintf(" (%d)", conv.Unread)
			}
			dot := " "
			for _, p := range conv.Participants {
				if m.sess != nil && p.ID != m.sess.UserID && m.online[p.ID] {
					dot = "●"
					break
				}
			}

			s.WriteString(style.Render(fmt.Sprintf("%s%s %s%s\n", prefix, dot, title, badge)))
			if conv.LastMessage != "" {
				s.WriteString(mutedStyle.Render(fmt.Sprintf("      %s\n", truncate(conv.LastMessage, 60))))
			}
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  ↑/↓ navigate • Enter to open • n notifications • Ctrl+L logout • q to quit"))
	return s.String()
}

func (m model) chatView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(m.currentConvName))
	s.WriteString("\n")
	s.WriteString(strings.Repeat("─", max(m.width-2, 10)))
	s.WriteString("\n")

	s.WriteString(m.chatViewport.View())
	s.WriteString("\n")

	if typing := m.convos.TypingNames(m.currentConvID); len(typing) > 0 {
		s.WriteString(mutedStyle.Render(fmt.Sprintf("%s typing...\n", strings.Join(typing, ", "))))
	}

	s.WriteString(strings.Repeat("─", max(m.width-2, 10)))
	s.WriteString("\n")
	s.WriteString(m.messageInput.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Enter to send • Esc to go back"))
	return s.String()
}

func (m model) notificationsView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf("Notifications (%d unread)", m.notes.Unread())))
	s.WriteString("\n\n")

	if err := m.notes.Err(); err != nil {
		s.WriteString(errorStyle.Render("  Could not refresh: "+err.Error()) + "\n")
		s.WriteString(mutedStyle.Render("  Showing last known notifications.\n\n"))
	}

	notes := m.notes.All()
	if len(notes) == 0 {
		s.WriteString(mutedStyle.Render("  Nothing here yet.\n"))
	} else {
		for i, n := range notes {
			prefix := "  "
			style := lipgloss.NewStyle()
			if i == m.selectedNote {
				prefix = "→ "
				style = selectedStyle
			}
			marker := "•"
			if n.Read {
				marker = " "
			}
			line := fmt.Sprintf("%s%s %s %s", prefix, marker, n.ActorName, describeNotification(n))
			if n.Read {
				s.WriteString(mutedStyle.Render(line + "\n"))
			} else {
				s.WriteString(style.Render(line + "\n"))
			}
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("  Enter mark read • a mark all • d delete • Esc back"))
	return s.String()
}

func describeNotification(n notify.Notification) string {
	switch n.Type {
	case "like":
		return "liked your post"
	case "comment":
		return "commented on your post"
	case "connection_request":
		return "sent you a connection request"
	case "connection_accepted":
		return "accepted your connection request"
	case "job_match":
		return "a job matches your profile"
	default:
		return n.Type
	}
}

func conversationTitle(conv convo.Conversation, sess *session.Session) string {
	names := make([]string, 0, len(conv.Participants))
	for _, p := range conv.Participants {
		if sess != nil && p.ID == sess.UserID {
			continue
		}
		names = append(names, p.Name)
	}
	if len(names) == 0 {
		return fmt.Sprintf("Conversation %s", conv.ID)
	}
	return strings.Join(names, ", ")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// --- Main ---

func main() {
	cfg := config.Load()
	logger := logx.New(cfg.Debug)

	p := tea.NewProgram(initialModel(cfg, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
