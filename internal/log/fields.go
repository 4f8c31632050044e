package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldInvoiceID     = "invoice_id"
	FieldItemID        = "item_id"
	FieldFileName      = "file_name"
	FieldFileType      = "file_type"
	FieldItemCount     = "item_count"
	FieldClassified    = "classified_count"
	FieldTaxableAmount = "taxable_amount"
	FieldTaxAmount     = "tax_amount"
	FieldSlabCount     = "slab_count"
	FieldSheetsRef     = "sheets_ref"
)

// Components
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentInvoice    = "invoice"
	ComponentStatistics = "statistics"
	ComponentClassifier = "classifier"
	ComponentReport     = "report"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentArchive    = "archive"
	ComponentCache      = "cache"
	ComponentSecurity   = "security"
	ComponentRateLimit  = "rate_limit"
	ComponentBackend    = "backend"
	ComponentCLI        = "cli"
)

// Operations
const (
	OpUpload    = "upload"
	OpRead      = "read"
	OpUpdate    = "update"
	OpList      = "list"
	OpClassify  = "classify"
	OpAggregate = "aggregate"
	OpSync      = "sync"
	OpExport    = "export"
	OpValidate  = "validate"
	OpParse     = "parse"
	OpReport    = "report"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// Error types
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeTimeout       = "timeout_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeUnsupported   = "unsupported_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields builds a set of structured fields.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError records err and its category. A nil err is ignored.
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		if errorType != "" {
			f[FieldErrorType] = errorType
		}
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithInvoice adds the identifying fields of an uploaded invoice.
func (f LogFields) WithInvoice(id, fileName, fileType string) LogFields {
	f[FieldInvoiceID] = id
	if fileName != "" {
		f[FieldFileName] = fileName
	}
	if fileType != "" {
		f[FieldFileType] = fileType
	}
	return f
}

// WithBreakdown adds the headline numbers of a GST breakdown.
func (f LogFields) WithBreakdown(items, slabs int, taxable, tax float64) LogFields {
	f[FieldItemCount] = items
	f[FieldSlabCount] = slabs
	f[FieldTaxableAmount] = taxable
	f[FieldTaxAmount] = tax
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice flattens the fields into slog key/value arguments.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
