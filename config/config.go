package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Plan struct {
	Code  string
	Title string
	Price int // рубли
	Days  int
}

type AppConfig struct {
	BotToken        string
	AdminTelegramID int64

	// 3x-ui панель
	XUIURL       string
	XUIUsername  string
	XUIPassword  string
	XUIInboundID int
	XUIIgnoreSSL bool

	// Данные для VLESS-ссылки
	LinkHost      string
	LinkPort      int
	LinkTagPrefix string
	VLESSPbk      string
	VLESSFp       string
	VLESSSni      string
	VLESSSid      string
	VLESSSpx      string
	VLESSFlow     string

	// YooKassa
	YKShopID    string
	YKSecretKey string
	YKReturnURL string

	// Тарифы
	Plans []Plan

	// Опционально: Postgres для хранения платежей между рестартами
	DatabaseURL string
}

var AppCfg AppConfig

func LoadConfig() {
	err := godotenv.Load()
	if err != nil {
		log.Println(".env file not found, relying on environment variables")
	}

	AppCfg.BotToken = os.Getenv("BOT_TOKEN")
	AppCfg.AdminTelegramID = getEnvInt64("ADMIN_TELEGRAM_ID", 0)

	AppCfg.XUIURL = os.Getenv("XUI_URL")
	AppCfg.XUIUsername = os.Getenv("XUI_USERNAME")
	AppCfg.XUIPassword = os.Getenv("XUI_PASSWORD")
	AppCfg.XUIInboundID = getEnvInt("XUI_INBOUND_ID", 1)
	AppCfg.XUIIgnoreSSL = getEnvDefault("XUI_IGNORE_SSL", "1") == "1"

	AppCfg.LinkHost = os.Getenv("LINK_HOST")
	AppCfg.LinkPort = getEnvInt("LINK_PORT", 443)
	AppCfg.LinkTagPrefix = getEnvDefault("LINK_TAG_PREFIX", "Home")
	AppCfg.VLESSPbk = os.Getenv("VLESS_PBK")
	AppCfg.VLESSFp = os.Getenv("VLESS_FP")
	AppCfg.VLESSSni = os.Getenv("VLESS_SNI")
	AppCfg.VLESSSid = os.Getenv("VLESS_SID")
	AppCfg.VLESSSpx = os.Getenv("VLESS_SPX")
	AppCfg.VLESSFlow = os.Getenv("VLESS_FLOW")

	AppCfg.YKShopID = os.Getenv("YK_SHOP_ID")
	AppCfg.YKSecretKey = os.Getenv("YK_SECRET_KEY")
	AppCfg.YKReturnURL = os.Getenv("YK_RETURN_URL")

	AppCfg.Plans = []Plan{
		{
			Code:  "month",
			Title: "1 месяц",
			Price: getEnvInt("PLAN_MONTH_PRICE", 399),
			Days:  getEnvInt("PLAN_MONTH_DAYS", 30),
		},
		{
			Code:  "3month",
			Title: "3 месяца",
			Price: getEnvInt("PLAN_3MONTH_PRICE", 1000),
			Days:  getEnvInt("PLAN_3MONTH_DAYS", 90),
		},
	}

	AppCfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if AppCfg.BotToken == "" || AppCfg.XUIURL == "" || AppCfg.YKShopID == "" || AppCfg.YKSecretKey == "" {
		log.Fatal("Critical environment variables are missing. Bot will exit.")
	}
}

// PlanByCode возвращает тариф по коду из callback-кнопки
func PlanByCode(code string) (Plan, bool) {
	for _, p := range AppCfg.Plans {
		if p.Code == code {
			return p, true
		}
	}
	return Plan{}, false
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getEnvInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}
