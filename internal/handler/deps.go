package handler

import (
	"dmchat/internal/app/account"
	"dmchat/internal/app/chat"
	"dmchat/internal/app/ledger"
	"dmchat/internal/app/relation"
	"dmchat/internal/configs"
)

type AppDeps struct {
	Config    *configs.AppConfig
	Accounts  *account.Service
	Relations *relation.Service
	Ledger    *ledger.Service
	Hub       *chat.Hub
}
