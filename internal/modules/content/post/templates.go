package post

import (
	"strings"
	"time"
)

// Template is a starting point offered by the editor.
type Template struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Content string `json:"content"`
}

const datePlaceholder = "{{date}}"

var templates = []Template{
	{
		ID:    "meeting",
		Label: "Compte Rendu Réunion",
		Icon:  "📅",
		Content: "# Compte Rendu : [Sujet]\n" +
			"**Date :** **Participants :** @...\n\n" +
			"## 1. Points abordés\n- Point A\n- Point B\n\n" +
			"## 2. Décisions\n> Décision importante prise.\n\n" +
			"## 3. Actions à suivre (To-Do)\n- [ ] Tâche 1\n- [ ] Tâche 2\n",
	},
	{
		ID:    "tech-doc",
		Label: "Documentation Technique",
		Icon:  "💻",
		Content: "# Documentation : [Nom du Service]\n\n" +
			"## 🧐 C'est quoi ?\nDescription courte du service ou de la fonctionnalité.\n\n" +
			"## ⚙️ Installation\n```bash\nnpm install mon-package\n```\n\n" +
			"## 🚀 Utilisation\nExplication de comment l'utiliser...\n\n" +
			"## ⚠️ Pièges connus\n- Attention à la version X...\n",
	},
	{
		ID:    "daily",
		Label: "Journal de bord",
		Icon:  "📓",
		Content: "# Journal du " + datePlaceholder + "\n\n" +
			"## 🎯 Objectifs du jour\n- \n\n" +
			"## 📝 Notes & Réflexions\n...\n\n" +
			"## ✅ Accomplissements\n- \n",
	},
}

// Templates returns the editor templates with the date filled in.
func Templates(now time.Time) []Template {
	out := make([]Template, len(templates))
	date := now.Format("02/01/2006")
	for i, t := range templates {
		t.Content = strings.ReplaceAll(t.Content, datePlaceholder, date)
		out[i] = t
	}
	return out
}
