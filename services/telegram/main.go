// Package telegram is a service for a telegram bot.
//
// Alerts targetted at telegram are sent to the configured chat, and any
// message sent to the bot is run as a query, replying with the answers.
package telegram

import (
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/chaabni/home-assistant/pubsub"
	"github.com/chaabni/home-assistant/services"
)

// Service telegram
type Service struct{}

// ID of the service
func (self *Service) ID() string {
	return "telegram"
}

func (self *Service) Version() string {
	return "1.0.0"
}

func alertTransmitter(bot *tgbotapi.BotAPI, chatId int64) {
	for ev := range services.Subscriber.Subscribe(pubsub.Prefix("alert")) {
		if ev.Target() != "telegram" {
			continue
		}
		message := ev.StringField("message")
		if message == "" {
			continue
		}
		msg := tgbotapi.NewMessage(chatId, message)
		if _, err := bot.Send(msg); err != nil {
			log.Println("Error sending message:", err)
		}
	}
}

func responder(bot *tgbotapi.BotAPI, chatId int64) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	for update := range bot.GetUpdatesChan(u) {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		if chatId != 0 && update.Message.Chat.ID != chatId {
			// only answer the configured chat
			continue
		}

		// send the message as a query
		log.Println("Querying:", update.Message.Text)
		ch := services.QueryChannel(update.Message.Text, 5*time.Second)

		gotResponse := false
		for ev := range ch {
			message := ev.StringField("message")
			if message == "" {
				message = ev.String()
			}
			reply := tgbotapi.NewMessage(update.Message.Chat.ID, message)
			bot.Send(reply)
			gotResponse = true
		}
		if !gotResponse {
			reply := tgbotapi.NewMessage(update.Message.Chat.ID, "Sorry, nothing answered")
			bot.Send(reply)
		}
	}
}

func (self *Service) Run() error {
	conf := services.Config.Telegram
	if conf.Token == "" {
		log.Fatalln("Please set:\ntelegram:\n  token: \"...\"")
	}

	bot, err := tgbotapi.NewBotAPI(conf.Token)
	if err != nil {
		return err
	}
	log.Printf("Authorized as %s", bot.Self.UserName)

	go alertTransmitter(bot, conf.ChatId)
	responder(bot, conf.ChatId)
	return nil
}
