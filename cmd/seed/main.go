package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ikkim/udonggeum-fulfillment/config"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/model"
	"github.com/ikkim/udonggeum-fulfillment/internal/app/repository"
	"github.com/ikkim/udonggeum-fulfillment/internal/db"
	"github.com/ikkim/udonggeum-fulfillment/pkg/report"
)

// 매장 목록(XLSX)을 stores 테이블에 등록. 분할 시 매장명 매칭 대상이 된다.
func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	// DB 연결
	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	storeRepo := repository.NewStoreRepository(db.GetDB())

	// XLSX 파일 읽기
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	file, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open XLSX:", err)
	}
	defer file.Close()

	vendors, skipped, err := report.ReadVendors(file)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total stores to import: %d (skipped rows: %d)\n", len(vendors), skipped)
	if len(vendors) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	stores := make([]model.Store, 0, len(vendors))
	for _, v := range vendors {
		stores = append(stores, model.Store{
			Name:        v.Name,
			Region:      v.Region,
			District:    v.District,
			PhoneNumber: v.PhoneNumber,
			OwnerUserID: v.OwnerUserID,
		})
	}

	if err := storeRepo.BulkCreate(context.Background(), stores); err != nil {
		log.Fatal("Failed to bulk create stores:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total stores imported: %d\n", len(stores))
}
