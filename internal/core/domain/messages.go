package domain

import "strings"

type MessageKey string

const (
	MsgEndpointMissing   MessageKey = "endpoint_missing"
	MsgFileMissing       MessageKey = "file_missing"
	MsgTextMissing       MessageKey = "text_missing"
	MsgNotAuthenticated  MessageKey = "not_authenticated"
	MsgRecordCreation    MessageKey = "record_creation"
	MsgExtraction        MessageKey = "extraction"
	MsgRemoteFailed      MessageKey = "remote_failed"
	MsgWatchTimeout      MessageKey = "watch_timeout"
	MsgProcessingFailed  MessageKey = "processing_failed"
	MsgAdminProfile      MessageKey = "admin_profile"
	MsgWebhookNotSet     MessageKey = "webhook_not_set"
	MsgDispatchTransport MessageKey = "dispatch_transport"
	MsgInProgress        MessageKey = "in_progress"
)

const DefaultLocale = "pt-BR"

var catalog = map[string]map[MessageKey]string{
	"pt-BR": {
		MsgEndpointMissing:   "Por favor, entre em contato com o administrador para configurar o sistema.",
		MsgFileMissing:       "Selecione um arquivo PDF para enviar.",
		MsgTextMissing:       "Insira o texto ou link para enviar.",
		MsgNotAuthenticated:  "Usuário não autenticado.",
		MsgRecordCreation:    "Falha ao criar registro.",
		MsgExtraction:        "Falha ao extrair texto do PDF.",
		MsgRemoteFailed:      "Falha no processamento remoto.",
		MsgWatchTimeout:      "Tempo limite excedido aguardando o resumo.",
		MsgProcessingFailed:  "Falha ao processar.",
		MsgAdminProfile:      "Perfil administrativo não encontrado.",
		MsgWebhookNotSet:     "URL do Webhook não configurada.",
		MsgDispatchTransport: "Erro na comunicação",
		MsgInProgress:        "Já existe um envio em andamento.",
	},
	"en": {
		MsgEndpointMissing:   "Please contact the administrator to configure the system.",
		MsgFileMissing:       "Select a PDF file to send.",
		MsgTextMissing:       "Enter the text or link to send.",
		MsgNotAuthenticated:  "User not authenticated.",
		MsgRecordCreation:    "Failed to create record.",
		MsgExtraction:        "Failed to extract text from the PDF.",
		MsgRemoteFailed:      "Remote processing failed.",
		MsgWatchTimeout:      "Timed out waiting for the summary.",
		MsgProcessingFailed:  "Failed to process.",
		MsgAdminProfile:      "Administrative profile not found.",
		MsgWebhookNotSet:     "Webhook URL not configured.",
		MsgDispatchTransport: "Communication error",
		MsgInProgress:        "A submission is already in progress.",
	},
}

// Messages resolves user-facing strings for one locale.
type Messages struct {
	locale string
}

func NewMessages(locale string) Messages {
	locale = strings.TrimSpace(locale)
	if _, ok := catalog[locale]; !ok {
		if _, ok := catalog[strings.SplitN(locale, "-", 2)[0]]; ok {
			locale = strings.SplitN(locale, "-", 2)[0]
		} else {
			locale = DefaultLocale
		}
	}
	return Messages{locale: locale}
}

func (m Messages) Locale() string {
	if m.locale == "" {
		return DefaultLocale
	}
	return m.locale
}

func (m Messages) Get(key MessageKey) string {
	if msg, ok := catalog[m.Locale()][key]; ok {
		return msg
	}
	return catalog[DefaultLocale][key]
}
