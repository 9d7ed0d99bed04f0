package common

import (
	"fmt"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`              // 錯誤代碼
	Message string `json:"message"`           // 錯誤信息
	Details string `json:"details,omitempty"` // 詳細信息（僅在開發模式顯示）
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string // 錯誤代碼
	Message string // 錯誤信息
	Err     error  // 原始錯誤
	Status  int    // HTTP 狀態碼
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Wrap 以預定義錯誤包裝原始錯誤
func (e *CustomError) Wrap(err error) *CustomError {
	return NewError(e.Code, e.Message, e.Status, err)
}

// Response 轉換為 API 錯誤響應
func (e *CustomError) Response(debug bool) ErrorResponse {
	resp := ErrorResponse{Code: e.Code, Message: e.Message}
	if debug && e.Err != nil {
		resp.Details = e.Err.Error()
	}
	return resp
}

// 預定義錯誤代碼
const (
	// 客戶端錯誤 (4xx)
	ErrCodeInvalidRequest        = "INVALID_REQUEST"       // 400
	ErrCodeRequestTimeout        = "REQUEST_TIMEOUT"       // 408
	ErrCodeInputTooLarge         = "INPUT_TOO_LARGE"       // 413
	ErrCodeTooManyRequests       = "TOO_MANY_REQUESTS"     // 429
	ErrCodeInternalError         = "INTERNAL_ERROR"        // 500
	ErrCodeServiceUnavailable    = "SERVICE_UNAVAILABLE"   // 503
	ErrCodeGatewayTimeout        = "GATEWAY_TIMEOUT"       // 504
	ErrCodeQueueFull             = "QUEUE_FULL"            // 503
	ErrCodeNotSucceededForRender = "RECIPE_NOT_RENDERABLE" // 422
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "無效的請求", http.StatusBadRequest, nil)
	ErrRequestTimeout     = NewError(ErrCodeRequestTimeout, "請求超時", http.StatusRequestTimeout, nil)
	ErrInputTooLarge      = NewError(ErrCodeInputTooLarge, "輸入內容過大", http.StatusRequestEntityTooLarge, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "請求過於頻繁", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "服務器內部錯誤", http.StatusInternalServerError, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceUnavailable, "服務暫時不可用", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "網關超時", http.StatusGatewayTimeout, nil)
	ErrQueueFull          = NewError(ErrCodeQueueFull, "處理隊列已滿", http.StatusServiceUnavailable, nil)
	ErrNotRenderable      = NewError(ErrCodeNotSucceededForRender, "食譜未成功組裝，無法輸出", http.StatusUnprocessableEntity, nil)
)

// DiagnosticKind 組裝診斷種類
type DiagnosticKind string

const (
	KindExtractionWarning DiagnosticKind = "extraction_warning"
	KindParseWarning      DiagnosticKind = "parse_warning"
	KindValidationError   DiagnosticKind = "validation_error"
	KindInputTooLarge     DiagnosticKind = "input_too_large"
)

// 診斷代碼
const (
	CodeMissingSection      = "missing_section"
	CodeTitleFallback       = "title_fallback"
	CodeDuplicateIngredient = "duplicate_ingredient"
	CodePartialInstructions = "partial_instructions"
	CodeExtractionFailed    = "extraction_failed"

	CodeNoName           = "no_name"
	CodeZeroDenominator  = "zero_denominator"
	CodeDescendingRange  = "descending_range"
	CodeNumberOutOfRange = "number_out_of_range"

	CodeEmptyIngredients  = "empty_ingredients"
	CodeEmptyInstructions = "empty_instructions"
	CodeMissingTitle      = "missing_title"

	CodeInputTooLarge = "input_too_large"
	CodeSyncRejected  = "sync_rejected"
)

// AssemblyError 組裝過程中的診斷
type AssemblyError struct {
	Kind    DiagnosticKind `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Section SectionKind    `json:"section,omitempty"`
	Line    int            `json:"line,omitempty"`
	Text    string         `json:"text,omitempty"`
}

func (e *AssemblyError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Fatal 是否為致命錯誤
func (e AssemblyError) Fatal() bool {
	return e.Kind == KindValidationError || e.Kind == KindInputTooLarge
}

// NewExtractionWarning 建立擷取警告
func NewExtractionWarning(code, message string, section SectionKind) *AssemblyError {
	return &AssemblyError{Kind: KindExtractionWarning, Code: code, Message: message, Section: section}
}

// NewParseWarning 建立解析警告
func NewParseWarning(code, message, text string) *AssemblyError {
	return &AssemblyError{Kind: KindParseWarning, Code: code, Message: message, Text: text}
}

// NewValidationError 建立驗證錯誤
func NewValidationError(code, message string) *AssemblyError {
	return &AssemblyError{Kind: KindValidationError, Code: code, Message: message}
}
