package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

var testLink = LinkParams{
	Host:      "vpn.example.com",
	Port:      443,
	TagPrefix: "Home",
	Pbk:       "pbk123",
	Fp:        "chrome",
	Sni:       "example.com",
	Sid:       "ab12",
	Spx:       "/",
	Flow:      "xtls-rprx-vision",
}

// fakePanel имитирует 3x-ui: логин, чтение inbound, addClient/updateClient
type fakePanel struct {
	mu            sync.Mutex
	clients       []Client
	logins        int
	redirectOnce  bool // следующий не-login запрос ответит 302
	expireMsgOnce bool // следующий не-login запрос ответит "session has expired"
}

func (p *fakePanel) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (p *fakePanel) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.logins++
		p.mu.Unlock()
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "sess"})
		p.writeJSON(w, map[string]interface{}{"success": true})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		if p.redirectOnce {
			p.redirectOnce = false
			p.mu.Unlock()
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		if p.expireMsgOnce {
			p.expireMsgOnce = false
			p.mu.Unlock()
			p.writeJSON(w, map[string]interface{}{"success": false, "msg": "Session has expired, please log in again"})
			return
		}
		p.mu.Unlock()

		switch {
		case strings.HasPrefix(r.URL.Path, "/panel/api/inbounds/get/"):
			p.mu.Lock()
			settings, _ := json.Marshal(InboundSettings{Clients: p.clients})
			p.mu.Unlock()
			p.writeJSON(w, map[string]interface{}{
				"success": true,
				"obj":     map[string]string{"settings": string(settings)},
			})
		case r.URL.Path == "/panel/api/inbounds/addClient":
			settings, err := ParseInboundSettings(r.FormValue("settings"))
			if err != nil || len(settings.Clients) == 0 {
				p.writeJSON(w, map[string]interface{}{"success": false, "msg": "bad settings"})
				return
			}
			p.mu.Lock()
			p.clients = append(p.clients, settings.Clients...)
			p.mu.Unlock()
			p.writeJSON(w, map[string]interface{}{"success": true})
		case strings.HasPrefix(r.URL.Path, "/panel/api/inbounds/updateClient"):
			settings, err := ParseInboundSettings(r.FormValue("settings"))
			if err != nil || len(settings.Clients) != 1 {
				p.writeJSON(w, map[string]interface{}{"success": false, "msg": "bad settings"})
				return
			}
			upd := settings.Clients[0]
			p.mu.Lock()
			found := false
			for i := range p.clients {
				if p.clients[i].Email == upd.Email {
					p.clients[i] = upd
					found = true
				}
			}
			p.mu.Unlock()
			p.writeJSON(w, map[string]interface{}{"success": found, "msg": "client not found"})
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func newTestXUI(t *testing.T, panel *fakePanel) (*XUIClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(panel.handler())
	t.Cleanup(srv.Close)
	return NewXUIClient(srv.URL, "admin", "secret", 1, false, testLink), srv
}

func linkUUID(t *testing.T, link string) string {
	t.Helper()
	if !strings.HasPrefix(link, "vless://") {
		t.Fatalf("не VLESS-ссылка: %s", link)
	}
	rest := strings.TrimPrefix(link, "vless://")
	return rest[:strings.Index(rest, "@")]
}

func TestUpsertCreatesThenExtends(t *testing.T) {
	panel := &fakePanel{}
	xui, _ := newTestXUI(t, panel)
	ctx := context.Background()

	before := time.Now().UnixMilli()
	link1, err := xui.UpsertClient(ctx, 42, 30, 0)
	if err != nil {
		t.Fatalf("первый upsert: %v", err)
	}
	if len(panel.clients) != 1 {
		t.Fatalf("ожидался один клиент, получено %d", len(panel.clients))
	}
	firstExpiry := panel.clients[0].ExpiryTime
	wantMin := before + 30*dayMs
	if firstExpiry < wantMin {
		t.Errorf("срок первого upsert %d меньше ожидаемого %d", firstExpiry, wantMin)
	}

	link2, err := xui.UpsertClient(ctx, 42, 60, 0)
	if err != nil {
		t.Fatalf("второй upsert: %v", err)
	}
	if len(panel.clients) != 1 {
		t.Fatalf("повторный upsert создал вторую запись: %d", len(panel.clients))
	}
	secondExpiry := panel.clients[0].ExpiryTime
	if secondExpiry < firstExpiry+60*dayMs {
		t.Errorf("продление уменьшило срок: %d -> %d", firstExpiry, secondExpiry)
	}
	if linkUUID(t, link1) != linkUUID(t, link2) {
		t.Errorf("uuid клиента изменился при продлении: %s != %s", link1, link2)
	}
	if panel.clients[0].Email != "user_42@bot" {
		t.Errorf("неожиданный email клиента: %s", panel.clients[0].Email)
	}
}

func TestUpsertZeroDaysDoesNotDuplicate(t *testing.T) {
	panel := &fakePanel{}
	xui, _ := newTestXUI(t, panel)
	ctx := context.Background()

	if _, err := xui.UpsertClient(ctx, 7, 30, 0); err != nil {
		t.Fatalf("создание: %v", err)
	}
	expiry := panel.clients[0].ExpiryTime
	if _, err := xui.UpsertClient(ctx, 7, 0, 0); err != nil {
		t.Fatalf("продление на 0 дней: %v", err)
	}
	if len(panel.clients) != 1 {
		t.Fatalf("продление создало вторую запись: %d", len(panel.clients))
	}
	if panel.clients[0].ExpiryTime < expiry {
		t.Errorf("срок уменьшился: %d -> %d", expiry, panel.clients[0].ExpiryTime)
	}
}

func TestSessionExpiryRedirectRelogin(t *testing.T) {
	panel := &fakePanel{}
	xui, _ := newTestXUI(t, panel)
	ctx := context.Background()

	if err := xui.EnsureLogin(ctx); err != nil {
		t.Fatalf("логин: %v", err)
	}
	panel.redirectOnce = true
	if _, err := xui.InboundClients(ctx); err != nil {
		t.Fatalf("запрос после деградации сессии: %v", err)
	}
	if panel.logins != 2 {
		t.Errorf("ожидался ровно один повторный логин, всего логинов %d", panel.logins)
	}
}

func TestSessionExpiryMessageRelogin(t *testing.T) {
	panel := &fakePanel{}
	xui, _ := newTestXUI(t, panel)
	ctx := context.Background()

	if err := xui.EnsureLogin(ctx); err != nil {
		t.Fatalf("логин: %v", err)
	}
	panel.expireMsgOnce = true
	if _, err := xui.InboundClients(ctx); err != nil {
		t.Fatalf("запрос после session has expired: %v", err)
	}
	if panel.logins != 2 {
		t.Errorf("ожидался ровно один повторный логин, всего логинов %d", panel.logins)
	}
}

func TestEnsureLoginBadCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":false,"msg":"invalid credentials"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	xui := NewXUIClient(srv.URL, "admin", "wrong", 1, false, testLink)
	err := xui.EnsureLogin(context.Background())
	var authErr *AuthError
	if err == nil {
		t.Fatal("ожидалась ошибка логина")
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Errorf("текст ошибки без причины: %v", err)
	}
	if ok := errors.As(err, &authErr); !ok {
		t.Errorf("ожидался *AuthError, получено %T", err)
	}
}

func TestBuildVLESSLink(t *testing.T) {
	xui := NewXUIClient("http://panel.local", "a", "b", 1, false, testLink)
	link := xui.BuildVLESSLink("uuid-1", "user_42@bot")
	want := "vless://uuid-1@vpn.example.com:443/?type=tcp&security=reality" +
		"&pbk=pbk123&fp=chrome&sni=example.com&sid=ab12&spx=/&flow=xtls-rprx-vision#Home-user_42%40bot"
	if link != want {
		t.Errorf("ссылка собрана неверно:\n got %s\nwant %s", link, want)
	}
	if _, err := url.Parse(link); err != nil {
		t.Errorf("ссылка не парсится как URI: %v", err)
	}
}

func TestTelegramIDFromEmail(t *testing.T) {
	tests := []struct {
		email string
		id    int64
		ok    bool
	}{
		{"user_42@bot", 42, true},
		{"user_123456789@bot", 123456789, true},
		{"admin@bot", 0, false},
		{"user_x@bot", 0, false},
		{"user_42@panel", 0, false},
	}
	for _, tt := range tests {
		id, ok := TelegramIDFromEmail(tt.email)
		if id != tt.id || ok != tt.ok {
			t.Errorf("%s: got (%d, %v), want (%d, %v)", tt.email, id, ok, tt.id, tt.ok)
		}
	}
}
