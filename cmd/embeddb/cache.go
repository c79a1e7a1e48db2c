package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/progress"
	"github.com/tsukumogami/embeddb/internal/store"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the artifact cache",
	Long:  `Manage downloaded archives and extracted file sets.`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear cached archives and file sets",
	Long: `Clear downloaded archives and extracted file sets.

Do not run this while a server started by embeddb is running; its
executable lives in the file set cache.`,
	Run: func(cmd *cobra.Command, args []string) {
		archivesOnly, _ := cmd.Flags().GetBool("archives")
		fileSetsOnly, _ := cmd.Flags().GetBool("filesets")

		// If no specific flag, clear all
		clearAll := !archivesOnly && !fileSetsOnly

		cfg, err := config.DefaultConfig()
		if err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
		}

		if clearAll || archivesOnly {
			if err := store.NewDownloadCache(cfg.ArchivesDir, nil).Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to clear archive cache: %v\n", err)
				exitWithCode(ExitGeneral)
			}
			printInfo("Archive cache cleared")
		}

		if clearAll || fileSetsOnly {
			if err := store.NewExtractedFileSetStore(cfg.FileSetsDir).Clear(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to clear file set cache: %v\n", err)
				exitWithCode(ExitGeneral)
			}
			printInfo("File set cache cleared")
		}
	},
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show cache information",
	Long:  `Show entry counts and sizes of the archive and file set caches.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		cfg, err := config.DefaultConfig()
		if err != nil {
			printError(err)
			exitWithCode(ExitGeneral)
		}

		archiveInfo, err := store.NewDownloadCache(cfg.ArchivesDir, nil).Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get archive cache info: %v\n", err)
			exitWithCode(ExitGeneral)
		}
		fileSetInfo, err := store.NewExtractedFileSetStore(cfg.FileSetsDir).Info()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to get file set cache info: %v\n", err)
			exitWithCode(ExitGeneral)
		}

		if jsonOutput {
			type cacheSection struct {
				Entries int64  `json:"entries"`
				Size    int64  `json:"size_bytes"`
				Path    string `json:"path"`
			}
			type cacheInfoOutput struct {
				Archives cacheSection `json:"archives"`
				FileSets cacheSection `json:"file_sets"`
			}
			printJSON(cacheInfoOutput{
				Archives: cacheSection{int64(archiveInfo.EntryCount), archiveInfo.TotalSize, cfg.ArchivesDir},
				FileSets: cacheSection{int64(fileSetInfo.EntryCount), fileSetInfo.TotalSize, cfg.FileSetsDir},
			})
			return
		}

		fmt.Println("Cache Information")
		fmt.Println()
		printCacheSection("Archives", archiveInfo, cfg.ArchivesDir)
		fmt.Println()
		printCacheSection("File sets", fileSetInfo, cfg.FileSetsDir)
	},
}

func printCacheSection(title string, info *store.CacheInfo, dir string) {
	fmt.Printf("%s:\n", title)
	fmt.Printf("  Entries: %d\n", info.EntryCount)
	fmt.Printf("  Size:    %s\n", progress.FormatBytes(info.TotalSize))
	fmt.Printf("  Path:    %s\n", dir)
}

func init() {
	cacheClearCmd.Flags().Bool("archives", false, "Clear only downloaded archives")
	cacheClearCmd.Flags().Bool("filesets", false, "Clear only extracted file sets")
	cacheInfoCmd.Flags().Bool("json", false, "Output in JSON format")

	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInfoCmd)
}
