// Package i18n provides localized messages for API errors
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/datashare/internal/logger"
)

// Supported languages
const (
	LangEnUS = "en-US"
	LangZhCN = "zh-CN"
)

var (
	instance *I18n
	once     sync.Once

	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal server error",
			"invalid_params":        "Invalid parameters",
			"unauthorized":          "Not authorized to access this route",
			"forbidden":             "Forbidden",
			"not_found":             "Resource not found",

			"dataset_not_found":     "Dataset not found",
			"no_file_attached":      "No file associated with this dataset",
			"file_size_too_large":   "File is too large",
			"file_type_not_allowed": "File type not allowed",
			"file_upload_failed":    "Failed to process file",
			"file_infected":         "File rejected by virus scan",
			"file_scan_failed":      "File could not be scanned",

			"database_connection": "Database connection error",
			"database_query":      "Database query error",
			"database_insert":     "Database insert error",
			"database_update":     "Database update error",
			"database_delete":     "Database delete error",

			"unknown_error": "Unknown error",
		},
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权",
			"forbidden":             "禁止访问",
			"not_found":             "资源未找到",

			"dataset_not_found":     "数据集未找到",
			"no_file_attached":      "该数据集没有关联文件",
			"file_size_too_large":   "文件大小超限",
			"file_type_not_allowed": "文件类型不允许",
			"file_upload_failed":    "文件处理失败",
			"file_infected":         "文件未通过病毒扫描",
			"file_scan_failed":      "文件扫描失败",

			"database_connection": "数据库连接错误",
			"database_query":      "数据库查询错误",
			"database_insert":     "数据库插入错误",
			"database_update":     "数据库更新错误",
			"database_delete":     "数据库删除错误",

			"unknown_error": "未知错误",
		},
	}
)

// I18n translation manager
type I18n struct {
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance returns the I18n singleton
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators registers the locales we ship messages for
func (i *I18n) initTranslators() {
	enUS := en_US.New()
	zhCN := zh.New()
	uni := ut.New(enUS, enUS, zhCN)

	langMappings := map[string]string{
		LangEnUS: "en_US",
		LangZhCN: "zh",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("translator not found for %s (locale %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}
}

// Translate returns the message for key in lang, falling back to the default language
func (i *I18n) Translate(key, lang string) string {
	if _, ok := i.translators[lang]; !ok {
		lang = i.defaultLang
	}

	if translation, found := translations[lang][key]; found {
		return translation
	}
	if lang != i.defaultLang {
		if translation, found := translations[i.defaultLang][key]; found {
			return translation
		}
	}

	logger.Warnf("missing translation: %s (%s)", key, lang)
	return key
}

// SetDefaultLanguage sets the fallback language
func (i *I18n) SetDefaultLanguage(lang string) {
	i.defaultLang = lang
}

// GetDefaultLanguage returns the fallback language
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// IsSupportedLanguage reports whether messages exist for lang
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}

// FromAcceptLanguage picks the first supported language of an Accept-Language header
func (i *I18n) FromAcceptLanguage(header string) string {
	for _, part := range strings.Split(header, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		for lang := range i.translators {
			if strings.EqualFold(lang, tag) || strings.EqualFold(strings.SplitN(lang, "-", 2)[0], tag) {
				return lang
			}
		}
	}
	return i.defaultLang
}
