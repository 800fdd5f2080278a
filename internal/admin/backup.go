package admin

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BackupDatabase создает дамп БД Postgres в указанный файл
func BackupDatabase(filename string, dsn string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cmd := exec.CommandContext(ctx, "pg_dump", dsn, "-Fc", "-f", filename)
	return cmd.Run()
}

// CleanOldBackups удаляет дампы старше maxAge в директории backups
func CleanOldBackups(dir string, maxAge time.Duration) error {
	files, err := filepath.Glob(filepath.Join(dir, "autobackup_*.dump"))
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(f)
		}
	}
	return nil
}

// AutoBackupDatabase запускает бэкап и чистку, уведомляет админа об ошибке
func AutoBackupDatabase(bot *tgbotapi.BotAPI, adminID int64, dsn string) {
	backupDir := "backups"
	os.MkdirAll(backupDir, 0o755)
	filename := filepath.Join(backupDir, "autobackup_"+time.Now().Format("20060102_150405")+".dump")
	if err := BackupDatabase(filename, dsn); err != nil {
		log.Println("[AUTO BACKUP] Ошибка резервного копирования: " + err.Error())
		if bot != nil && adminID != 0 {
			bot.Send(tgbotapi.NewMessage(adminID, "Ошибка бэкапа БД: "+err.Error()))
		}
		return
	}
	CleanOldBackups(backupDir, 31*24*time.Hour)
	log.Println("[AUTO BACKUP] Резервная копия БД успешно создана: " + filename)
}
