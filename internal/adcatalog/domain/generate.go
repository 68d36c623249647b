package domain

//go:generate mockgen -destination=../mock/directory_mock.go -package=mock github.com/smallbiznis/spotlight/internal/adcatalog/domain Directory
