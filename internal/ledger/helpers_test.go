package ledger

import "github.com/ppiankov/amlgate/internal/model"

func modelID(s string) model.AccountID { return model.AccountID(s) }
