package ai

import "fmt"

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// WelcomeMessage opens every article conversation on the client.
const WelcomeMessage = "Bonjour ! Je suis l'IA de cet article. Posez-moi une question, je répondrai en utilisant le contenu ci-contre."

const chatSystemPrompt = `Tu es un assistant expert et pédagogue. Réponds en te basant EXCLUSIVEMENT sur l'article ci-dessous.

RÈGLES DE MISE EN FORME OBLIGATOIRES :
1. AÈRE AU MAXIMUM ta réponse.
2. Utilise des listes à puces (- ) pour énumérer.
3. Fais des sauts de ligne doubles entre chaque idée principale.
4. Mets en **gras** les termes techniques importants.
5. Sois concis mais structuré (Intro -> Points clés -> Conclusion).

--- DÉBUT ARTICLE ---
Titre : %s
Contenu : %s
--- FIN ARTICLE ---`

const generatorPrompt = `Rédige un article technique détaillé et structuré au format Markdown sur le sujet : "%s". Utilise des titres, des listes, du gras et des blocs de code si pertinent. L'article doit être pédagogique.`

func buildChatSystemPrompt(title, content string) string {
	return fmt.Sprintf(chatSystemPrompt, title, content)
}

func buildGeneratorPrompt(title string) string {
	return fmt.Sprintf(generatorPrompt, title)
}
