package i18n

import (
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iamwavecut/telegram-assistant-bot/resources"
)

var state = struct {
	translations       map[string]map[string]string // [key][lang][translation]
	availableLanguages []string
}{
	translations:       map[string]map[string]string{},
	availableLanguages: []string{"en"},
}

var initialize sync.Once

func load() {
	initialize.Do(func() {
		if len(state.translations) > 0 {
			return
		}
		i18n, err := resources.FS.ReadFile("i18n.yaml")
		if err != nil {
			log.WithError(err).Errorln("cant load translations")
			return
		}
		if err := yaml.Unmarshal(i18n, &(state.translations)); err != nil {
			log.WithError(err).Errorln("cant unmarshal translations")
			return
		}
		languages := map[string]struct{}{}
		for _, langs := range state.translations {
			for lang := range langs {
				languages[strings.ToLower(lang)] = struct{}{}
			}
		}
		delete(languages, "en")
		for lang := range languages {
			state.availableLanguages = append(state.availableLanguages, lang)
		}
		sort.Strings(state.availableLanguages)
		log.Traceln("languages count:", len(state.availableLanguages))
	})
}

func GetLanguagesList() []string {
	load()
	return state.availableLanguages[:]
}

func Get(key, lang string) string {
	load()
	if lang == "" || lang == "en" {
		return key
	}
	if res, ok := state.translations[key][strings.ToUpper(lang)]; ok {
		return res
	}
	log.Traceln(`no "` + lang + `" translation for key "` + key + `"`)
	return key
}
