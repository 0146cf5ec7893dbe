package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=info"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	SearchFilepath       string        `env:"SEARCH_FILEPATH,required=true"`
	UploadDir            string        `env:"UPLOAD_DIR,required=true"`
	BaseURL              string        `env:"BASE_URL,default=http://localhost:8080"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	CensoredWordsPath    string        `env:"CENSORED_WORDS_PATH"`
	MaskCharacter        string        `env:"MASK_CHARACTER,default=*"`
}
