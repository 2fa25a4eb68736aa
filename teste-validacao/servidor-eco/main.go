package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/em-breve", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Em breve</h1><p>UA: %s</p>", r.UserAgent())
		fmt.Println("Log: requisição em /em-breve com fingerprint", r.Header.Get("X-Render-Hash"))
	})
	fmt.Println("Servidor de validação rodando em http://localhost:8081")
	err := http.ListenAndServe(":8081", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
