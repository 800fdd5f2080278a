package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"VPN-Shop-bot/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dayMs = 24 * 60 * 60 * 1000

// Client — запись клиента в inbound панели 3x-ui.
// Панель хранит список клиентов внутри settings как вложенную JSON-строку.
type Client struct {
	ID         string `json:"id"`
	Flow       string `json:"flow"`
	Email      string `json:"email"`
	Enable     bool   `json:"enable"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"` // миллисекунды с эпохи
	TgID       string `json:"tgId"`
	SubID      string `json:"subId"`
	Reset      int    `json:"reset"`
}

type InboundSettings struct {
	Clients    []Client `json:"clients"`
	Decryption string   `json:"decryption,omitempty"`
}

// ParseInboundSettings разбирает вложенную JSON-строку settings из ответа панели
func ParseInboundSettings(raw string) (*InboundSettings, error) {
	var s InboundSettings
	if strings.TrimSpace(raw) == "" {
		return &s, nil
	}
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("unmarshal inbound settings: %w", err)
	}
	return &s, nil
}

// encodeClients собирает settings-строку для addClient/updateClient
func encodeClients(clients ...Client) string {
	b, _ := json.Marshal(InboundSettings{Clients: clients})
	return string(b)
}

// LinkParams — статические параметры VLESS-ссылки (Reality)
type LinkParams struct {
	Host      string
	Port      int
	TagPrefix string
	Pbk       string
	Fp        string
	Sni       string
	Sid       string
	Spx       string
	Flow      string
}

type apiResponse struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Obj     json.RawMessage `json:"obj"`
}

// XUIClient — авторизованная сессия к панели 3x-ui.
// Сессионная cookie живёт в jar; флаг loggedIn общий для всех горутин.
type XUIClient struct {
	baseURL   string
	username  string
	password  string
	inboundID int
	link      LinkParams

	http *http.Client

	mu       sync.Mutex
	loggedIn bool
}

func NewXUIClient(baseURL, username, password string, inboundID int, ignoreSSL bool, link LinkParams) *XUIClient {
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	jar, _ := cookiejar.New(nil)
	transport := &http.Transport{}
	if ignoreSSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &XUIClient{
		baseURL:   baseURL,
		username:  username,
		password:  password,
		inboundID: inboundID,
		link:      link,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Jar:       jar,
			Transport: transport,
			// Редирект — признак протухшей сессии, отдаём его наверх как есть
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *XUIClient) setLoggedIn(v bool) {
	c.mu.Lock()
	c.loggedIn = v
	c.mu.Unlock()
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// request выполняет вызов панели. Редирект или "session has expired" в ответе
// означает деградацию cookie: сбрасываем флаг, логинимся заново и повторяем
// тот же запрос, пока не исчерпан retry.
func (c *XUIClient) request(ctx context.Context, method, path string, form url.Values, retry int) (*apiResponse, error) {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("create panel request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("panel request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if isRedirect(resp.StatusCode) {
		if retry > 0 {
			c.setLoggedIn(false)
			if err := c.EnsureLogin(ctx); err != nil {
				return nil, err
			}
			return c.request(ctx, method, path, form, retry-1)
		}
		return nil, &PanelError{Msg: "too many redirects to " + resp.Header.Get("Location")}
	}

	var api apiResponse
	// Панель иногда отвечает пустым телом, это не ошибка
	_ = json.NewDecoder(resp.Body).Decode(&api)

	if !api.Success && strings.Contains(strings.ToLower(api.Msg), "session has expired") {
		if retry > 0 {
			c.setLoggedIn(false)
			if err := c.EnsureLogin(ctx); err != nil {
				return nil, err
			}
			return c.request(ctx, method, path, form, retry-1)
		}
		return nil, &PanelError{Msg: "session expired and retry failed: " + api.Msg}
	}

	return &api, nil
}

// EnsureLogin выполняет логин, если сессия ещё не установлена. Идемпотентен.
func (c *XUIClient) EnsureLogin(ctx context.Context) error {
	c.mu.Lock()
	if c.loggedIn {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	api, err := c.request(ctx, http.MethodPost, "login", form, 0)
	if err != nil {
		return err
	}
	if !api.Success {
		return &AuthError{Msg: api.Msg}
	}
	c.setLoggedIn(true)
	logger.Info("xui login ok", zap.String("panel", c.baseURL))
	return nil
}

// InboundClients возвращает список клиентов настроенного inbound
func (c *XUIClient) InboundClients(ctx context.Context) ([]Client, error) {
	api, err := c.request(ctx, http.MethodGet, "panel/api/inbounds/get/"+strconv.Itoa(c.inboundID), nil, 1)
	if err != nil {
		return nil, err
	}
	if !api.Success {
		return nil, &PanelError{Msg: "get inbound error: " + api.Msg}
	}
	var obj struct {
		Settings string `json:"settings"`
	}
	if err := json.Unmarshal(api.Obj, &obj); err != nil {
		return nil, fmt.Errorf("unmarshal inbound object: %w", err)
	}
	settings, err := ParseInboundSettings(obj.Settings)
	if err != nil {
		return nil, err
	}
	return settings.Clients, nil
}

// FindClientByEmail ищет клиента по email-идентификатору.
// Промах — обычный результат: ErrClientNotFound.
func (c *XUIClient) FindClientByEmail(ctx context.Context, email string) (*Client, error) {
	clients, err := c.InboundClients(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		if clients[i].Email == email {
			return &clients[i], nil
		}
	}
	return nil, ErrClientNotFound
}

// updateSingleClient пушит обновлённую запись клиента обратно на панель.
// Сначала путь с uuid, затем legacy-путь без него (старые форки панели).
func (c *XUIClient) updateSingleClient(ctx context.Context, client Client) error {
	form := url.Values{
		"id":       {strconv.Itoa(c.inboundID)},
		"settings": {encodeClients(client)},
	}
	api, err := c.request(ctx, http.MethodPost, "panel/api/inbounds/updateClient/"+client.ID, form, 1)
	if err != nil {
		return err
	}
	if api.Success {
		return nil
	}
	alt, err := c.request(ctx, http.MethodPost, "panel/api/inbounds/updateClient", form, 1)
	if err != nil {
		return err
	}
	if !alt.Success {
		return &PanelError{Msg: "updateClient error: " + api.Msg + " / " + alt.Msg}
	}
	return nil
}

// AddClient создаёт нового клиента и возвращает VLESS-ссылку
func (c *XUIClient) AddClient(ctx context.Context, clientID, email string, expiryMs, limitGB int64) (string, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return "", err
	}
	client := Client{
		ID:         clientID,
		Flow:       c.link.Flow,
		Email:      email,
		Enable:     true,
		TotalGB:    limitGB,
		ExpiryTime: expiryMs,
	}
	form := url.Values{
		"id":       {strconv.Itoa(c.inboundID)},
		"settings": {encodeClients(client)},
	}
	// addClient на некоторых панелях сбоит с первого раза, даём два повтора
	api, err := c.request(ctx, http.MethodPost, "panel/api/inbounds/addClient", form, 2)
	if err != nil {
		return "", err
	}
	if !api.Success {
		return "", &PanelError{Msg: "addClient error: " + api.Msg}
	}
	logger.Info("xui client added", zap.String("email", email))
	return c.BuildVLESSLink(clientID, email), nil
}

// ExtendClient продлевает существующего клиента: новый срок считается от
// максимума из текущего срока и "сейчас", срок никогда не уменьшается
func (c *XUIClient) ExtendClient(ctx context.Context, email string, addDays int, limitGB int64) (string, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return "", err
	}
	nowMs := time.Now().UnixMilli()
	addMs := int64(addDays) * dayMs

	clients, err := c.InboundClients(ctx)
	if err != nil {
		return "", err
	}
	for _, client := range clients {
		if client.Email != email {
			continue
		}
		base := client.ExpiryTime
		if nowMs > base {
			base = nowMs
		}
		client.ExpiryTime = base + addMs
		if limitGB > 0 {
			client.TotalGB = limitGB
		}
		if err := c.updateSingleClient(ctx, client); err != nil {
			return "", err
		}
		logger.Info("xui client extended",
			zap.String("email", email), zap.Int64("expiry_ms", client.ExpiryTime))
		return c.BuildVLESSLink(client.ID, email), nil
	}
	return "", fmt.Errorf("extend client %s: %w", email, ErrClientNotFound)
}

// UpsertClient — центральная операция выдачи доступа: продлить существующего
// клиента пользователя или создать нового. Повторный вызов для того же
// пользователя никогда не создаёт вторую запись.
func (c *XUIClient) UpsertClient(ctx context.Context, tgUserID int64, days int, limitGB int64) (string, error) {
	if err := c.EnsureLogin(ctx); err != nil {
		return "", err
	}
	email := ClientEmail(tgUserID)
	_, err := c.FindClientByEmail(ctx, email)
	if err == nil {
		return c.ExtendClient(ctx, email, days, limitGB)
	}
	if err != ErrClientNotFound {
		return "", err
	}
	clientID := uuid.New().String()
	expiryMs := time.Now().UnixMilli() + int64(days)*dayMs
	return c.AddClient(ctx, clientID, email, expiryMs, limitGB)
}

// ClientEmail — детерминированный идентификатор клиента на панели
func ClientEmail(tgUserID int64) string {
	return fmt.Sprintf("user_%d@bot", tgUserID)
}

// TelegramIDFromEmail — обратное преобразование для уведомлений
func TelegramIDFromEmail(email string) (int64, bool) {
	if !strings.HasPrefix(email, "user_") || !strings.HasSuffix(email, "@bot") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(email, "user_"), "@bot"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// BuildVLESSLink собирает ссылку подключения из статического конфига и id клиента
func (c *XUIClient) BuildVLESSLink(clientID, email string) string {
	tag := strings.ReplaceAll(c.link.TagPrefix+"-"+email, "@", "%40")
	return fmt.Sprintf(
		"vless://%s@%s:%d/?type=tcp&security=reality&pbk=%s&fp=%s&sni=%s&sid=%s&spx=%s&flow=%s#%s",
		clientID, c.link.Host, c.link.Port,
		c.link.Pbk, c.link.Fp, c.link.Sni, c.link.Sid, c.link.Spx, c.link.Flow,
		tag,
	)
}
