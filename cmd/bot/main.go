package main

import (
	"io"
	"log"
	"net/http"
	"os"

	"VPN-Shop-bot/config"
	"VPN-Shop-bot/internal/admin"
	"VPN-Shop-bot/internal/bot"
	"VPN-Shop-bot/internal/db"
	"VPN-Shop-bot/internal/logger"
	"VPN-Shop-bot/internal/services"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"
)

func main() {
	config.LoadConfig()

	botapi, err := tgbotapi.NewBotAPI(config.AppCfg.BotToken)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}
	logger.InitNotifier(botapi, config.AppCfg.AdminTelegramID)

	// --- Логирование в файл и консоль ---
	logFile, err := os.OpenFile("bot.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatalf("Не удалось открыть файл логов: %v", err)
	}
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	// Хранилище платежей: Postgres при заданном DATABASE_URL, иначе память
	var store db.PaymentStore
	if config.AppCfg.DatabaseURL != "" {
		db.InitDB(config.AppCfg.DatabaseURL)
		store = db.NewGormStore(db.DB)
	} else {
		log.Println("DATABASE_URL не задан, платежи хранятся в памяти до рестарта")
		store = db.NewMemoryStore()
	}

	xui := services.NewXUIClient(
		config.AppCfg.XUIURL,
		config.AppCfg.XUIUsername,
		config.AppCfg.XUIPassword,
		config.AppCfg.XUIInboundID,
		config.AppCfg.XUIIgnoreSSL,
		services.LinkParams{
			Host:      config.AppCfg.LinkHost,
			Port:      config.AppCfg.LinkPort,
			TagPrefix: config.AppCfg.LinkTagPrefix,
			Pbk:       config.AppCfg.VLESSPbk,
			Fp:        config.AppCfg.VLESSFp,
			Sni:       config.AppCfg.VLESSSni,
			Sid:       config.AppCfg.VLESSSid,
			Spx:       config.AppCfg.VLESSSpx,
			Flow:      config.AppCfg.VLESSFlow,
		},
	)
	yookassa := services.NewYooKassaClient(config.AppCfg.YKShopID, config.AppCfg.YKSecretKey)
	tasks := services.NewSupervisor()
	watcher := services.NewWatcher(yookassa, xui, store, bot.NewNotifier(botapi), tasks)

	// Уведомления о скором окончании подписки (раз в сутки в 10:00)
	c := cron.New()
	c.AddFunc("0 10 * * *", func() {
		services.NotifyExpiringClients(botapi, xui, 3)
	})
	// Автоматический бэкап БД раз в сутки
	if config.AppCfg.DatabaseURL != "" {
		c.AddFunc("0 3 * * *", func() {
			admin.AutoBackupDatabase(botapi, config.AppCfg.AdminTelegramID, config.AppCfg.DatabaseURL)
		})
	}
	c.Start()

	// Webhook-сервер для YooKassa (VPS)
	go func() {
		http.HandleFunc("/yookassa/webhook", services.WebhookHandler(config.AppCfg.YKSecretKey, store))
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		log.Println("Запуск webhook-сервера на :8080 (VPS)")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Fatalf("Webhook server error: %v", err)
		}
	}()

	// Подхватить платежи, ожидавшие подтверждения на момент рестарта
	for _, rec := range store.Pending() {
		watcher.Start(rec.PaymentID)
	}

	// Запуск Telegram-бота (polling)
	b := bot.NewBot(botapi, xui, yookassa, store, watcher)
	b.Start()
}
