package main

import (
	"context"
	"flag"
	"log"
	"time"

	"retreat_app_echo/internal/config"
	"retreat_app_echo/internal/models"
	"retreat_app_echo/internal/services"
)

func main() {
	phone := flag.String("phone", "", "Phone number (e.g. 6045551234)")
	email := flag.String("email", "", "Send through the notifier to this user instead, honoring their preference")
	msg := flag.String("msg", "Test message from the retreat app", "Message body")
	flag.Parse()

	if *phone == "" && *email == "" {
		log.Fatal("Please provide -phone or -email")
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	waha := services.NewWahaService(cfg.Waha)

	if *email == "" {
		chatID := services.NormalizeChatID(*phone)
		log.Printf("Sending message to %s: %s", chatID, *msg)
		if err := waha.SendMessage(ctx, chatID, *msg); err != nil {
			log.Fatalf("Failed to send message: %v", err)
		}
		log.Println("Message sent successfully!")
		return
	}

	db, err := services.InitDB(cfg.DatabaseURL, services.DBOptions{LogLevel: services.GormLogLevel(config.EnvProduction)})
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	var user models.User
	if err := db.Where("email = ?", *email).Take(&user).Error; err != nil {
		log.Fatalf("User %s not found: %v", *email, err)
	}

	notifier := services.NewNotifier(db, services.NewEmailService(cfg.SMTP), waha, nil)
	channel, err := notifier.Notify(ctx, user, "Test notification", *msg)
	if err != nil {
		log.Fatalf("Failed to notify via %s: %v", channel, err)
	}
	log.Printf("Notified %s via %s", user.Email, channel)
}
