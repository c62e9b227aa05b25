package ai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/Role1776/gigago"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"finbot/internal/models"
	"finbot/pkg/config"
)

const (
	gigaChatBaseURL  = "https://gigachat.devices.sberbank.ru/api/v1"
	gigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	gigaChatModel    = "GigaChat"
)

func buildSystemInstruction() string {
	return `Você é um assistente financeiro pessoal. Você recebe textos extraídos de comprovantes, faturas, extratos bancários e mensagens de usuários, e registra as transações financeiras encontradas.

Quando o usuário descrever ou enviar transações, responda SOMENTE com um objeto JSON neste formato:
{
  "transacoes": [
    {"descricao": "...", "valor": 0.0, "categoria": "...", "tipo": "income|expense", "data": "YYYY-MM-DD", "moeda": "BRL"}
  ],
  "total_fatura": 0.0,
  "vencimento": "YYYY-MM-DD",
  "confidence_score": 0.0,
  "resposta": "confirmação curta para o usuário"
}

REGRAS:
- "confidence_score" entre 0.0 e 1.0 refletindo sua certeza na extração.
- "total_fatura" e "vencimento" apenas para faturas com valor total e data de vencimento.
- Omita campos que não se aplicam. Se não houver nenhuma transação, não invente.
- Para perguntas ou conversa sem conteúdo financeiro, responda em texto simples, sem JSON.
- Nunca inclua comentários fora do JSON quando houver transações.`
}

// Extractor is the language-model client: structured transaction
// extraction from text, text extraction from images via the Vision API,
// and plain conversational turns.
type Extractor struct {
	client      *gigago.Client
	model       *gigago.GenerativeModel
	config      *config.GigaChatConfig
	logger      *zap.Logger
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

func NewExtractor(cfg *config.GigaChatConfig, logger *zap.Logger) (*Extractor, error) {
	ctx := context.Background()

	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	model := client.GenerativeModel(gigaChatModel)
	model.SystemInstruction = buildSystemInstruction()
	model.Temperature = 0.3

	httpClient := &http.Client{}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	// File uploads and the Vision API go through the REST API directly
	// and need their own access token.
	accessToken, err := getAccessToken(ctx, cfg, httpClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	return &Extractor{
		client:      client,
		model:       model,
		config:      cfg,
		logger:      logger,
		httpClient:  httpClient,
		baseURL:     gigaChatBaseURL,
		accessToken: accessToken,
	}, nil
}

// ExtractFromText asks the model to structure the transactions found in
// extracted document text. An answer with no JSON object is a valid "no
// financial content" outcome, not an error.
func (e *Extractor) ExtractFromText(ctx context.Context, text, caption string) (*models.RawAIResponse, error) {
	text = strings.TrimSpace(text)
	if len(text) < 10 {
		e.logger.Warn("Extracted text too short, skipping analysis", zap.Int("length", len(text)))
		return &models.RawAIResponse{}, nil
	}

	prompt := fmt.Sprintf("Extraia as transações financeiras do texto abaixo e responda apenas com o objeto JSON.\n\nTexto do documento:\n%s", text)
	if caption != "" {
		prompt += fmt.Sprintf("\n\nObservação do usuário: %s", caption)
	}

	messages := []gigago.Message{
		{Role: gigago.RoleUser, Content: prompt},
	}

	resp, err := e.model.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from LLM")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	parsed := salvageResponse(content)
	e.logger.Info("Transaction extraction completed",
		zap.Int("transactions", len(parsed.Transacoes)+len(parsed.Gastos)),
		zap.Float64("confidence", parsed.Confidence()),
	)
	return parsed, nil
}

// Converse runs a free-text conversational turn over the stored context.
func (e *Extractor) Converse(ctx context.Context, turns []models.Turn, message string) (string, error) {
	messages := make([]gigago.Message, 0, len(turns)+1)
	for _, turn := range turns {
		role := gigago.RoleUser
		if turn.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, gigago.Message{Role: role, Content: turn.Content})
	}
	messages = append(messages, gigago.Message{Role: gigago.RoleUser, Content: message})

	resp, err := e.model.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// salvageResponse decodes the JSON object embedded in a model reply. The
// model is untrusted: markdown fences, prose around the object and missing
// fields are all tolerated. No object at all means a pure conversation
// turn and yields an empty response.
func salvageResponse(content string) *models.RawAIResponse {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return &models.RawAIResponse{Resposta: content}
	}

	jsonStr := content[start : end+1]
	var resp models.RawAIResponse
	if err := json.Unmarshal([]byte(jsonStr), &resp); err != nil {
		jsonStr = strings.TrimSpace(jsonStr)
		jsonStr = strings.TrimPrefix(jsonStr, "```json")
		jsonStr = strings.TrimPrefix(jsonStr, "```")
		jsonStr = strings.TrimSuffix(jsonStr, "```")
		if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &resp); err != nil {
			return &models.RawAIResponse{Resposta: content}
		}
	}
	return &resp
}

// ExtractTextFromImage uploads an image and reads its text through the
// Vision API.
func (e *Extractor) ExtractTextFromImage(ctx context.Context, data []byte, filename string) (string, error) {
	fileID, err := e.uploadFile(ctx, data, filename)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	prompt := "Extraia todo o texto visível nesta imagem de documento financeiro. Retorne apenas o texto, preservando valores, datas e descrições."
	return e.extractViaVisionAPI(ctx, fileID, prompt)
}

func (e *Extractor) uploadFile(ctx context.Context, data []byte, filename string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// "general" purpose allows the file to be referenced in generation
	// requests (Vision API).
	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/files", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+e.accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token expired: refresh once and ask the caller to retry.
		accessToken, refreshErr := getAccessToken(ctx, e.config, e.httpClient, e.logger)
		if refreshErr != nil {
			return "", fmt.Errorf("upload failed with 401, token refresh also failed: %w", refreshErr)
		}
		e.accessToken = accessToken
		return "", fmt.Errorf("access token expired, retry the operation")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var uploadResp struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploadResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	e.logger.Debug("File uploaded to GigaChat", zap.String("file_id", uploadResp.ID))
	return uploadResp.ID, nil
}

func (e *Extractor) extractViaVisionAPI(ctx context.Context, fileID, prompt string) (string, error) {
	// Attachment format per the GigaChat API: array of arrays of file IDs.
	requestBody := map[string]interface{}{
		"model": gigaChatModel,
		"messages": []map[string]interface{}{
			{
				"role":        "user",
				"content":     prompt,
				"attachments": [][]string{{fileID}},
			},
		},
		"temperature": 0.3,
		"stream":      false,
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vision API failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var visionResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&visionResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(visionResp.Choices) == 0 {
		return "", fmt.Errorf("no response from Vision API")
	}

	return strings.TrimSpace(visionResp.Choices[0].Message.Content), nil
}

func (e *Extractor) Close() error {
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// getAccessToken obtains an OAuth token for direct REST API calls (file
// uploads, Vision). The API key is already Base64-encoded per the GigaChat
// documentation.
func getAccessToken(ctx context.Context, cfg *config.GigaChatConfig, httpClient *http.Client, logger *zap.Logger) (string, error) {
	formData := url.Values{}
	formData.Set("scope", cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, "POST", gigaChatOAuthURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.New().String())
	req.Header.Set("Authorization", "Basic "+cfg.APIKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OAuth failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var oauthResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauthResp); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if oauthResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in OAuth response")
	}

	logger.Info("GigaChat access token obtained", zap.Int("expires_in", oauthResp.ExpiresIn))
	return oauthResp.AccessToken, nil
}
